package service

import (
	"context"
	"log/slog"

	"github.com/sumire/timeledger/internal/domain"
	"github.com/sumire/timeledger/internal/repository"
)

// LedgerService owns the per-project time ledger: reading the full
// snapshot and applying batched changes to it.
type LedgerService struct {
	projects *repository.ProjectRepository
	members  *repository.MemberRepository
	times    *repository.TimeEntryRepository
	pays     *repository.PayEntryRepository
	allocs   *repository.AllocationRepository
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(
	projects *repository.ProjectRepository,
	members *repository.MemberRepository,
	times *repository.TimeEntryRepository,
	pays *repository.PayEntryRepository,
	allocs *repository.AllocationRepository,
) *LedgerService {
	return &LedgerService{projects: projects, members: members, times: times, pays: pays, allocs: allocs}
}

// ReadProjectTime returns the full ledger snapshot. Members always may
// read; non-members only when the project is public. Denial and
// nonexistence both come back as ErrForbidden so project ids cannot be
// probed.
func (s *LedgerService) ReadProjectTime(ctx context.Context, userID, projectID int64) (*domain.ProjectTime, error) {
	role, err := s.members.Role(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if role == nil || !role.Can(domain.OpViewProject) {
		pt, err := s.ReadPublicProjectTime(ctx, projectID)
		if err != nil {
			return nil, domain.ErrForbidden
		}
		return pt, nil
	}
	return s.readSnapshot(ctx, projectID)
}

// ReadPublicProjectTime returns the snapshot for a public project.
// Non-public and nonexistent projects both yield ErrForbidden.
func (s *LedgerService) ReadPublicProjectTime(ctx context.Context, projectID int64) (*domain.ProjectTime, error) {
	project, err := s.projects.Read(ctx, projectID)
	if err != nil {
		return nil, domain.ErrForbidden
	}
	if !project.Public {
		return nil, domain.ErrForbidden
	}
	return s.readSnapshot(ctx, projectID)
}

// UserTime returns the caller's time entries across all projects.
func (s *LedgerService) UserTime(ctx context.Context, userID int64) ([]domain.TimeEntry, error) {
	return s.times.ForUser(ctx, userID)
}

// SaveProjectTime applies a batched ledger change and returns the
// re-read snapshot. The caller needs a writing role on the project;
// anyone else gets ErrForbidden, identical for nonexistent projects.
//
// The batch is not a transaction. Lists are applied in a fixed order
// (time saves, time deletes, pay saves, pay deletes, allocation saves,
// allocation deletes) and each item stands alone: a failed item is
// logged and its siblings still apply. The returned snapshot reflects
// whatever actually landed.
func (s *LedgerService) SaveProjectTime(ctx context.Context, userID int64, spt domain.SaveProjectTime) (*domain.ProjectTime, error) {
	role, err := s.members.Role(ctx, userID, spt.Project)
	if err != nil {
		return nil, err
	}
	if role == nil || !role.Can(domain.OpSaveProjectTime) {
		return nil, domain.ErrForbidden
	}

	for _, ste := range spt.SaveTimeEntries {
		if _, err := s.times.Save(ctx, userID, ste); err != nil {
			slog.Error("save time entry", "project", spt.Project, "user", userID, "error", err)
		}
	}
	for _, id := range spt.DeleteTimeEntries {
		if err := s.times.Delete(ctx, id); err != nil {
			slog.Error("delete time entry", "id", id, "error", err)
		}
	}
	for _, spe := range spt.SavePayEntries {
		if _, err := s.pays.Save(ctx, userID, spe); err != nil {
			slog.Error("save pay entry", "project", spt.Project, "user", userID, "error", err)
		}
	}
	for _, id := range spt.DeletePayEntries {
		if err := s.pays.Delete(ctx, id); err != nil {
			slog.Error("delete pay entry", "id", id, "error", err)
		}
	}
	for _, sa := range spt.SaveAllocations {
		if _, err := s.allocs.Save(ctx, userID, sa); err != nil {
			slog.Error("save allocation", "project", spt.Project, "user", userID, "error", err)
		}
	}
	for _, id := range spt.DeleteAllocations {
		if err := s.allocs.Delete(ctx, id); err != nil {
			slog.Error("delete allocation", "id", id, "error", err)
		}
	}

	return s.readSnapshot(ctx, spt.Project)
}

func (s *LedgerService) readSnapshot(ctx context.Context, projectID int64) (*domain.ProjectTime, error) {
	project, err := s.projects.Read(ctx, projectID)
	if err != nil {
		return nil, err
	}
	members, err := s.members.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	times, err := s.times.ForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	pays, err := s.pays.ForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	allocs, err := s.allocs.ForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &domain.ProjectTime{
		Project:     *project,
		Members:     members,
		TimeEntries: times,
		PayEntries:  pays,
		Allocations: allocs,
	}, nil
}
