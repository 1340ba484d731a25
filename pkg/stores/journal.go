package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/telemetry"
)

// journalWriteTimeout bounds a single write-through to the journal.
const journalWriteTimeout = 5 * time.Second

// AttachJournal loads every journaled record into the store and then writes
// each later Add through to the journal. Write-through failures are logged
// and never surface to the writer.
func (s *ResourceStore) AttachJournal(ctx context.Context, journal Journal, logger *telemetry.Logger) error {
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	logger = logger.NewComponentLogger("journal")

	attachers := []func() error{
		func() error { return attachTable(ctx, journal, engine.ResourceTypeStack, s.Stacks, logger) },
		func() error { return attachTable(ctx, journal, engine.ResourceTypeEnvironment, s.Environments, logger) },
		func() error { return attachTable(ctx, journal, engine.ResourceTypeApp, s.Apps, logger) },
		func() error {
			return attachTable(ctx, journal, engine.ResourceTypeAppConfiguration, s.Configurations, logger)
		},
		func() error { return attachTable(ctx, journal, engine.ResourceTypeService, s.Services, logger) },
		func() error { return attachTable(ctx, journal, engine.ResourceTypeDatabase, s.Databases, logger) },
		func() error { return attachTable(ctx, journal, engine.ResourceTypeEndpoint, s.Endpoints, logger) },
		func() error { return attachTable(ctx, journal, engine.ResourceTypeCertificate, s.Certificates, logger) },
		func() error { return attachTable(ctx, journal, engine.ResourceTypeLogDrain, s.LogDrains, logger) },
		func() error { return attachTable(ctx, journal, engine.ResourceTypeMetricDrain, s.MetricDrains, logger) },
		func() error { return attachTable(ctx, journal, engine.ResourceTypeOperation, s.Operations, logger) },
	}

	for _, attach := range attachers {
		if err := attach(); err != nil {
			return err
		}
	}

	s.journal = journal
	return nil
}

// Journal returns the attached journal, or nil.
func (s *ResourceStore) Journal() Journal {
	return s.journal
}

func attachTable[T Record](ctx context.Context, journal Journal, kind engine.ResourceType, table *Table[T], logger *telemetry.Logger) error {
	rows, err := journal.ListRecords(ctx, kind)
	if err != nil {
		return fmt.Errorf("failed to hydrate %s records: %w", kind, err)
	}

	records := make([]T, 0, len(rows))
	for _, row := range rows {
		var record T
		if err := json.Unmarshal([]byte(row.Payload), &record); err != nil {
			logger.WithError(err).WithResource(kind, row.ID).Warn("Skipping undecodable journal record")
			continue
		}
		records = append(records, record)
	}
	if len(records) > 0 {
		table.load(records)
	}

	table.setWriteHook(func(written []T) {
		writeCtx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
		defer cancel()

		for _, record := range written {
			payload, err := json.Marshal(record)
			if err != nil {
				logger.WithError(err).WithResource(kind, record.RecordID()).Error("Failed to encode record for journal")
				continue
			}
			row := &RecordRow{Kind: kind, ID: record.RecordID(), Payload: string(payload)}
			if err := journal.UpsertRecord(writeCtx, row); err != nil {
				logger.WithError(err).WithResource(kind, record.RecordID()).Error("Failed to journal record")
			}
		}
	})

	table.setRemoveHook(func(ids []string) {
		removeCtx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
		defer cancel()

		for _, id := range ids {
			if err := journal.DeleteRecord(removeCtx, kind, id); err != nil {
				logger.WithError(err).WithResource(kind, id).Error("Failed to remove journaled record")
			}
		}
	})

	logger.WithField("kind", string(kind)).WithField("count", len(records)).Debug("Hydrated records from journal")
	return nil
}
