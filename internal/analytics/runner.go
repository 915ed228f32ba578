// Package analytics builds traffic reports from the GA4 Data API.
package analytics

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/option"
)

// Query is one GA4 runReport call over a single date range.
type Query struct {
	Start      string
	End        string
	Dimensions []string
	Metrics    []string
	OrderBy    string // metric name, descending
	Limit      int64
}

// Row holds dimension and metric values in query order.
type Row struct {
	Dimensions []string
	Metrics    []string
}

func (r Row) Int(i int) int64 {
	if i >= len(r.Metrics) {
		return 0
	}
	v, err := strconv.ParseInt(r.Metrics[i], 10, 64)
	if err != nil {
		f, _ := strconv.ParseFloat(r.Metrics[i], 64)
		return int64(f)
	}
	return v
}

func (r Row) Float(i int) float64 {
	if i >= len(r.Metrics) {
		return 0
	}
	v, _ := strconv.ParseFloat(r.Metrics[i], 64)
	return v
}

func (r Row) Dim(i int) string {
	if i >= len(r.Dimensions) {
		return ""
	}
	return r.Dimensions[i]
}

// Runner executes report queries against one property.
type Runner interface {
	Run(ctx context.Context, q Query) ([]Row, error)
}

// GARunner runs queries with the GA4 Data API using a service account.
type GARunner struct {
	svc      *analyticsdata.Service
	property string
}

func NewGARunner(ctx context.Context, propertyID, credentialsPath string) (*GARunner, error) {
	if strings.TrimSpace(propertyID) == "" {
		return nil, fmt.Errorf("analytics property id is required")
	}
	if strings.TrimSpace(credentialsPath) == "" {
		return nil, fmt.Errorf("analytics credentials path is required")
	}
	svc, err := analyticsdata.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(analyticsdata.AnalyticsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create analytics client: %w", err)
	}
	return &GARunner{svc: svc, property: PropertyName(propertyID)}, nil
}

// PropertyName normalizes "123" to "properties/123".
func PropertyName(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "properties/") {
		return id
	}
	return "properties/" + id
}

func (g *GARunner) Run(ctx context.Context, q Query) ([]Row, error) {
	req := &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{{StartDate: q.Start, EndDate: q.End}},
		Limit:      q.Limit,
	}
	for _, d := range q.Dimensions {
		req.Dimensions = append(req.Dimensions, &analyticsdata.Dimension{Name: d})
	}
	for _, m := range q.Metrics {
		req.Metrics = append(req.Metrics, &analyticsdata.Metric{Name: m})
	}
	if q.OrderBy != "" {
		req.OrderBys = []*analyticsdata.OrderBy{{
			Metric: &analyticsdata.MetricOrderBy{MetricName: q.OrderBy},
			Desc:   true,
		}}
	}

	resp, err := g.svc.Properties.RunReport(g.property, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("run report: %w", err)
	}
	rows := make([]Row, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		row := Row{}
		for _, v := range r.DimensionValues {
			row.Dimensions = append(row.Dimensions, v.Value)
		}
		for _, v := range r.MetricValues {
			row.Metrics = append(row.Metrics, v.Value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
