package social

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"time"
)

const (
	ViewToday = "today"
	ViewWeek  = "week"
	ViewMonth = "month"
)

var calendarHeader = []string{"Date", "Time", "Content", "Status", "Thread", "Campaign", "Char Count"}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Calendar narrows posts to a view and a campaign and sorts them by
// scheduled time. Dates are compared in each post's own timezone. The
// week view spans today through seven days ahead, inclusive. An empty
// view or campaign matches everything.
func Calendar(posts []ScheduledTweet, view, campaign string, now time.Time) ([]ScheduledTweet, error) {
	switch view {
	case "", ViewToday, ViewWeek, ViewMonth:
	default:
		return nil, fmt.Errorf("unknown calendar view %q (want today, week or month)", view)
	}
	var out []ScheduledTweet
	for _, p := range posts {
		if campaign != "" && p.Metadata.Campaign != campaign {
			continue
		}
		if view != "" {
			at, err := p.At()
			if err != nil {
				log.Printf("[tweets] skip %s: %v", p.ID, err)
				continue
			}
			day, today := civilDate(at), civilDate(now.In(at.Location()))
			switch view {
			case ViewToday:
				if !day.Equal(today) {
					continue
				}
			case ViewWeek:
				if day.Before(today) || day.After(today.AddDate(0, 0, 7)) {
					continue
				}
			case ViewMonth:
				if day.Year() != today.Year() || day.Month() != today.Month() {
					continue
				}
			}
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledTime < out[j].ScheduledTime })
	return out, nil
}

type CalendarDay struct {
	Date    string
	Weekday time.Weekday
	Posts   []ScheduledTweet
}

// GroupByDay buckets sorted posts by the date part of their scheduled time.
func GroupByDay(posts []ScheduledTweet) []CalendarDay {
	var days []CalendarDay
	for _, p := range posts {
		date := p.ScheduledTime
		if len(date) >= 10 {
			date = date[:10]
		}
		if n := len(days); n > 0 && days[n-1].Date == date {
			days[n-1].Posts = append(days[n-1].Posts, p)
			continue
		}
		day := CalendarDay{Date: date, Posts: []ScheduledTweet{p}}
		if d, err := time.Parse("2006-01-02", date); err == nil {
			day.Weekday = d.Weekday()
		}
		days = append(days, day)
	}
	return days
}

// ExportCalendar writes posts as json or csv.
func ExportCalendar(w io.Writer, posts []ScheduledTweet, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if posts == nil {
			posts = []ScheduledTweet{}
		}
		return enc.Encode(posts)
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(calendarHeader); err != nil {
			return err
		}
		for _, p := range posts {
			date, clock := p.ScheduledTime, ""
			if len(date) >= 16 {
				date, clock = p.ScheduledTime[:10], p.ScheduledTime[11:16]
			}
			thread := "No"
			if p.Metadata.IsThread {
				thread = "Yes"
			}
			row := []string{date, clock, p.Content, p.Status, thread, p.Metadata.Campaign, strconv.Itoa(p.Metadata.CharCount)}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unknown export format %q (want json or csv)", format)
	}
}

type WeekCount struct {
	Week  string `json:"week"`
	Count int    `json:"count"`
}

type CalendarStats struct {
	Total    int            `json:"total"`
	Single   int            `json:"single"`
	Threads  int            `json:"threads"`
	ByStatus map[string]int `json:"by_status"`
	ByWeek   []WeekCount    `json:"by_week"`
}

// weekKey numbers weeks from the first Sunday of the year, so days before
// it fall in week 00.
func weekKey(t time.Time) string {
	week := (t.YearDay() - 1 + 7 - int(t.Weekday())) / 7
	return fmt.Sprintf("%d-W%02d", t.Year(), week)
}

func Stats(posts []ScheduledTweet) CalendarStats {
	st := CalendarStats{Total: len(posts), ByStatus: make(map[string]int)}
	weeks := make(map[string]int)
	for _, p := range posts {
		if p.Metadata.IsThread {
			st.Threads++
		} else {
			st.Single++
		}
		st.ByStatus[p.Status]++
		at, err := time.Parse(TimeLayout, p.ScheduledTime)
		if err != nil {
			continue
		}
		weeks[weekKey(at)]++
	}
	for k, n := range weeks {
		st.ByWeek = append(st.ByWeek, WeekCount{Week: k, Count: n})
	}
	sort.Slice(st.ByWeek, func(i, j int) bool { return st.ByWeek[i].Week < st.ByWeek[j].Week })
	return st
}
