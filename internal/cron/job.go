package cron

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stellarlinkco/opsclaw/internal/store"
)

const jobsVersion = "1.0"

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrDuplicateJob = errors.New("job already exists")
)

type Job struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Schedule    string    `json:"schedule"`
	Command     string    `json:"command"`
	Description string    `json:"description"`
	Enabled     bool      `json:"enabled"`
	Tags        []string  `json:"tags"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	RunCount    int       `json:"run_count"`
}

// NewJob builds an enabled job with a short random id. The schedule is
// translated from English when possible and must validate.
func NewJob(name, schedule, command string, now time.Time) (Job, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Job{}, errors.New("job name is required")
	}
	if strings.TrimSpace(command) == "" {
		return Job{}, errors.New("job command is required")
	}
	expr := Translate(schedule)
	if err := Validate(expr); err != nil {
		return Job{}, err
	}
	return Job{
		ID:        shortID(),
		Name:      name,
		Schedule:  expr,
		Command:   command,
		Enabled:   true,
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func shortID() string {
	return uuid.NewString()[:8]
}

type jobsDoc struct {
	Jobs    []Job  `json:"jobs"`
	Version string `json:"version"`
}

// JobUpdate carries optional changes; nil or empty fields are untouched.
type JobUpdate struct {
	Schedule    *string
	Command     *string
	Description *string
	Enabled     *bool
	Category    *string
	AddTags     []string
	RemoveTags  []string
}

type JobFilter struct {
	Tag         string
	Category    string
	EnabledOnly bool
}

type JobStore struct {
	file *store.JSONFile[jobsDoc]
	now  func() time.Time
}

func NewJobStore(path string) *JobStore {
	return &JobStore{
		file: store.NewJSONFile(path, func() jobsDoc { return jobsDoc{Version: jobsVersion} }),
		now:  time.Now,
	}
}

// Add stores job. A duplicate name is rejected and the stored record is
// left as it was.
func (s *JobStore) Add(job Job) error {
	return s.file.Update(func(doc *jobsDoc) error {
		for _, j := range doc.Jobs {
			if j.Name == job.Name {
				return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
			}
		}
		if doc.Version == "" {
			doc.Version = jobsVersion
		}
		doc.Jobs = append(doc.Jobs, job)
		return nil
	})
}

func (s *JobStore) Get(name string) (Job, error) {
	doc, err := s.file.Load()
	if err != nil {
		return Job{}, err
	}
	for _, j := range doc.Jobs {
		if j.Name == name {
			return j, nil
		}
	}
	return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
}

func (s *JobStore) List(f JobFilter) ([]Job, error) {
	doc, err := s.file.Load()
	if err != nil {
		return nil, err
	}
	var out []Job
	for _, j := range doc.Jobs {
		if f.EnabledOnly && !j.Enabled {
			continue
		}
		if f.Category != "" && j.Category != f.Category {
			continue
		}
		if f.Tag != "" && !contains(j.Tags, f.Tag) {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *JobStore) Remove(name string) (Job, error) {
	var removed Job
	err := s.file.Update(func(doc *jobsDoc) error {
		for i, j := range doc.Jobs {
			if j.Name == name {
				removed = j
				doc.Jobs = append(doc.Jobs[:i], doc.Jobs[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	})
	return removed, err
}

func (s *JobStore) Update(name string, u JobUpdate) (Job, error) {
	var schedule string
	if u.Schedule != nil {
		schedule = Translate(*u.Schedule)
		if err := Validate(schedule); err != nil {
			return Job{}, err
		}
	}
	return s.mutate(name, func(j *Job) {
		if u.Schedule != nil {
			j.Schedule = schedule
		}
		if u.Command != nil {
			j.Command = *u.Command
		}
		if u.Description != nil {
			j.Description = *u.Description
		}
		if u.Enabled != nil {
			j.Enabled = *u.Enabled
		}
		if u.Category != nil {
			j.Category = *u.Category
		}
		for _, t := range u.AddTags {
			if t = strings.TrimSpace(t); t != "" && !contains(j.Tags, t) {
				j.Tags = append(j.Tags, t)
			}
		}
		if len(u.RemoveTags) > 0 {
			kept := j.Tags[:0]
			for _, t := range j.Tags {
				if !contains(u.RemoveTags, t) {
					kept = append(kept, t)
				}
			}
			j.Tags = kept
		}
		sort.Strings(j.Tags)
	})
}

func (s *JobStore) SetEnabled(name string, enabled bool) (Job, error) {
	return s.mutate(name, func(j *Job) { j.Enabled = enabled })
}

// RecordRun bumps the run counter after an execution.
func (s *JobStore) RecordRun(name string) (Job, error) {
	return s.mutate(name, func(j *Job) { j.RunCount++ })
}

func (s *JobStore) mutate(name string, fn func(*Job)) (Job, error) {
	var out Job
	err := s.file.Update(func(doc *jobsDoc) error {
		for i := range doc.Jobs {
			if doc.Jobs[i].Name == name {
				fn(&doc.Jobs[i])
				doc.Jobs[i].UpdatedAt = s.now()
				out = doc.Jobs[i]
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	})
	return out, err
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
