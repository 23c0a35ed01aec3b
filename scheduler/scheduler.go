// Package scheduler loads the dataset at startup and reloads it on an
// interval whenever the source reports a change.
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/dosesegura/dose-segura/interfaces"
	"github.com/dosesegura/dose-segura/logging"
	"github.com/dosesegura/dose-segura/metrics"
)

// ErrEmptyDataset is returned when a load leaves no usable medication
var ErrEmptyDataset = errors.New("dataset has no valid medications")

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler handles dataset reloads using dependency injection
type Scheduler struct {
	dataStore interfaces.DataStore
	source    interfaces.DatasetSource
	validator interfaces.DataValidator
	interval  int
	scheduler *gocron.Scheduler
}

// NewScheduler creates a new scheduler that checks the source every
// intervalMinutes
func NewScheduler(dataStore interfaces.DataStore, source interfaces.DatasetSource, validator interfaces.DataValidator, intervalMinutes int) *Scheduler {
	return &Scheduler{
		dataStore: dataStore,
		source:    source,
		validator: validator,
		interval:  intervalMinutes,
		scheduler: gocron.NewScheduler(time.Local),
	}
}

// Start performs the initial load and schedules the periodic check
func (s *Scheduler) Start() error {
	if err := s.updateData(true); err != nil {
		logging.Error("Failed to perform initial data load", "error", err)
		return fmt.Errorf("initial data load failed: %w", err)
	}

	_, err := s.scheduler.Every(s.interval).Minutes().WaitForSchedule().Do(func() {
		if err := s.updateData(false); err != nil {
			logging.Error("Failed to reload dataset", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule reloads", "error", err)
		return fmt.Errorf("failed to schedule reloads: %w", err)
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Reload checks the source and swaps in a new snapshot when it changed
func (s *Scheduler) Reload() error {
	return s.updateData(false)
}

// updateData loads, sanitizes and swaps in the dataset. Unless force is set
// an unchanged source is skipped. On failure the current snapshot is kept.
func (s *Scheduler) updateData(force bool) error {
	if !s.dataStore.BeginUpdate() {
		logging.Info("Update already in progress, skipping...")
		return nil
	}
	defer s.dataStore.EndUpdate()

	if !force {
		changed, err := s.source.Changed()
		if err != nil {
			metrics.DatasetReloads.WithLabelValues("failed").Inc()
			return fmt.Errorf("failed to check dataset: %w", err)
		}
		if !changed {
			metrics.DatasetReloads.WithLabelValues("unchanged").Inc()
			return nil
		}
	}

	start := time.Now()

	dataset, err := s.source.Load()
	if err != nil {
		metrics.DatasetReloads.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	report := s.validator.SanitizeDataset(dataset)

	if len(report.DuplicateIDs) > 0 {
		logging.Warn("Duplicate medication ids detected, last value kept",
			"total", len(report.DuplicateIDs),
			"ids", report.DuplicateIDs,
		)
	}

	if len(report.MismatchedIDs) > 0 {
		logging.Warn("Medication ids differ from their keys, keys kept",
			"total", len(report.MismatchedIDs),
			"ids", report.MismatchedIDs,
		)
	}

	if len(report.RejectedIDs) > 0 {
		logging.Warn("Medications rejected",
			"total", len(report.RejectedIDs),
			"ids", report.RejectedIDs,
		)
	}

	if len(report.EmptyMedications) > 0 {
		logging.Debug("Medications without any section content",
			"total", len(report.EmptyMedications),
			"ids", report.EmptyMedications,
		)
	}

	if dataset.Medications.Len() == 0 {
		metrics.DatasetReloads.WithLabelValues("failed").Inc()
		return ErrEmptyDataset
	}

	s.dataStore.UpdateData(dataset, report)
	metrics.DatasetReloads.WithLabelValues("loaded").Inc()
	metrics.DatasetMedications.Set(float64(dataset.Medications.Len()))

	logging.Info("Dataset loaded",
		"duration", time.Since(start).String(),
		"version", dataset.Version,
		"medication_count", dataset.Medications.Len(),
	)

	return nil
}
