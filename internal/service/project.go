package service

import (
	"context"
	"fmt"

	"github.com/sumire/timeledger/internal/domain"
	"github.com/sumire/timeledger/internal/repository"
)

// ProjectService composes project and membership operations, applying
// the role policy before anything is written.
type ProjectService struct {
	projects *repository.ProjectRepository
	members  *repository.MemberRepository
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projects *repository.ProjectRepository, members *repository.MemberRepository) *ProjectService {
	return &ProjectService{projects: projects, members: members}
}

// ProjectList returns the caller's projects, most recently worked-on
// first.
func (s *ProjectService) ProjectList(ctx context.Context, userID int64) ([]domain.ListProject, error) {
	return s.projects.List(ctx, userID)
}

// AllMembers returns every known user, for the member picker.
func (s *ProjectService) AllMembers(ctx context.Context) ([]domain.User, error) {
	return s.members.All(ctx)
}

// SaveProjectEdit saves the project record and applies the membership
// changes, then re-reads the result. Creating a project is open to any
// user; editing an existing one requires the Admin role on it. A denied
// edit returns ErrForbidden whether the project exists or not, so
// project ids cannot be probed.
func (s *ProjectService) SaveProjectEdit(ctx context.Context, userID int64, spe domain.SaveProjectEdit) (*domain.SavedProjectEdit, error) {
	if spe.Project.ID != nil {
		role, err := s.members.Role(ctx, userID, *spe.Project.ID)
		if err != nil {
			return nil, err
		}
		if role == nil || !role.Can(domain.OpEditProject) {
			return nil, domain.ErrForbidden
		}
	}

	saved, err := s.projects.Save(ctx, userID, spe.Project)
	if err != nil {
		return nil, err
	}

	for _, m := range spe.Members {
		if m.Delete {
			if err := s.members.Delete(ctx, saved.ID, m.ID); err != nil {
				return nil, err
			}
			continue
		}
		if err := s.members.Upsert(ctx, saved.ID, m.ID, m.Role); err != nil {
			return nil, err
		}
	}

	project, err := s.projects.Read(ctx, saved.ID)
	if err != nil {
		return nil, fmt.Errorf("re-read saved project %d: %w", saved.ID, err)
	}
	members, err := s.members.List(ctx, saved.ID)
	if err != nil {
		return nil, err
	}
	return &domain.SavedProjectEdit{Project: *project, Members: members}, nil
}

// ReadProjectEdit returns the project and its member list for the edit
// screen. Any role on the project suffices.
func (s *ProjectService) ReadProjectEdit(ctx context.Context, userID, projectID int64) (*domain.ProjectEdit, error) {
	role, err := s.members.Role(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if role == nil || !role.Can(domain.OpViewProject) {
		return nil, domain.ErrForbidden
	}

	project, err := s.projects.Read(ctx, projectID)
	if err != nil {
		return nil, err
	}
	members, err := s.members.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &domain.ProjectEdit{Project: *project, Members: members}, nil
}

// SaveProjectInvoice advances the project's invoice sequence. Only the
// Admin role may move it, since it changes what future invoices are
// numbered.
func (s *ProjectService) SaveProjectInvoice(ctx context.Context, userID int64, spi domain.SaveProjectInvoice) error {
	role, err := s.members.Role(ctx, userID, spi.ID)
	if err != nil {
		return err
	}
	if role == nil || !role.Can(domain.OpEditProject) {
		return domain.ErrForbidden
	}
	return s.projects.SaveInvoice(ctx, spi)
}
