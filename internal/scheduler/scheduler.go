// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the periodic tree cache refresh and event cleanup.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/geotree/internal/logging"
)

// Job names.
const (
	JobRefreshTrees = "refresh_trees"
	JobPruneEvents  = "prune_events"
)

// DefaultCleanupSchedule runs event pruning once a day.
const DefaultCleanupSchedule = "@daily"

// jobTimeout bounds a single job run.
const jobTimeout = 2 * time.Minute

// ErrUnknownJob is returned by Trigger for names that were never scheduled.
var ErrUnknownJob = errors.New("unknown job")

// Refresher rebuilds cached trees.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// EventPruner deletes old events and records what it did.
type EventPruner interface {
	DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error)
	LogInfo(ctx context.Context, category, message string, metadata map[string]any) error
}

// Options configures which jobs run and when.
type Options struct {
	// RefreshSchedule is a cron spec for the tree refresh. Empty disables it.
	RefreshSchedule string
	// EventRetention is how long events are kept. Zero disables pruning.
	EventRetention time.Duration
	// CleanupSchedule is the cron spec for pruning; DefaultCleanupSchedule when empty.
	CleanupSchedule string
}

// JobInfo describes a scheduled job.
type JobInfo struct {
	Name     string
	Schedule string
	Next     time.Time
}

type job struct {
	name     string
	schedule string
	entryID  cron.EntryID
	run      func(ctx context.Context) error
}

// Scheduler handles the periodic maintenance jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	trees  Refresher
	events EventPruner
	opts   Options
	jobs   []*job
}

// New creates a new scheduler instance. events may be nil when pruning is not wanted.
func New(trees Refresher, events EventPruner, opts Options, logger *slog.Logger) *Scheduler {
	if opts.CleanupSchedule == "" {
		opts.CleanupSchedule = DefaultCleanupSchedule
	}
	return &Scheduler{
		// Overlapping runs of the same job are skipped, not queued.
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
		trees:  trees,
		events: events,
		opts:   opts,
	}
}

// Start registers the enabled jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if spec := strings.TrimSpace(s.opts.RefreshSchedule); spec != "" && s.trees != nil {
		if err := s.add(JobRefreshTrees, spec, s.refreshTrees); err != nil {
			return err
		}
	}
	if s.opts.EventRetention > 0 && s.events != nil {
		if err := s.add(JobPruneEvents, s.opts.CleanupSchedule, s.pruneEvents); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// Jobs lists the registered jobs with their next run time.
func (s *Scheduler) Jobs() []JobInfo {
	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, JobInfo{
			Name:     j.name,
			Schedule: j.schedule,
			Next:     s.cron.Entry(j.entryID).Next,
		})
	}
	return out
}

// Trigger runs a registered job immediately on the calling goroutine.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	for _, j := range s.jobs {
		if j.name == name {
			return j.run(ctx)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownJob, name)
}

func (s *Scheduler) add(name, spec string, run func(ctx context.Context) error) error {
	j := &job{name: name, schedule: spec, run: run}
	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := j.run(ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", j.name, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling %s with %q: %w", name, spec, err)
	}
	j.entryID = id
	s.jobs = append(s.jobs, j)
	return nil
}

func (s *Scheduler) refreshTrees(ctx context.Context) error {
	start := time.Now()
	if err := s.trees.Refresh(ctx); err != nil {
		return fmt.Errorf("refreshing tree cache: %w", err)
	}
	s.logger.Debug("tree cache refreshed", "duration", time.Since(start))
	return nil
}

func (s *Scheduler) pruneEvents(ctx context.Context) error {
	n, err := s.events.DeleteOldEvents(ctx, s.opts.EventRetention)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	s.logger.Info("old events deleted", "count", n)
	return s.events.LogInfo(ctx, logging.EventCategorySystem, "old events deleted", map[string]any{
		"count":     n,
		"retention": s.opts.EventRetention.String(),
	})
}
