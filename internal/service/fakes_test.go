package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"leadflow-data/internal/domain"
	"leadflow-data/internal/repository"

	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// ============================================
// 内存版 LeadsRepository（并发语义与 Postgres 实现对齐）
// ============================================

type fakeLeadsRepo struct {
	mu         sync.Mutex
	seq        int
	leads      map[string]*domain.Lead
	activities []*domain.LeadActivity

	// 非空时 CreateLead 校验平台存在性（对齐 Postgres 实现的 EXISTS 检查）
	validPlatforms map[string]bool
}

func newFakeLeadsRepo() *fakeLeadsRepo {
	return &fakeLeadsRepo{leads: make(map[string]*domain.Lead)}
}

var _ repository.LeadsRepository = (*fakeLeadsRepo)(nil)

func (f *fakeLeadsRepo) nextID() string {
	f.seq++
	return "lead-" + strconv.Itoa(f.seq)
}

func (f *fakeLeadsRepo) addActivity(leadID string, marketerID *string, activityType string, oldValues, newValues json.RawMessage, notes string) {
	f.activities = append(f.activities, &domain.LeadActivity{
		ID:           "act-" + strconv.Itoa(len(f.activities)+1),
		LeadID:       leadID,
		MarketerID:   marketerID,
		ActivityType: activityType,
		OldValues:    oldValues,
		NewValues:    newValues,
		Notes:        notes,
		CreatedAt:    time.Now(),
	})
}

func (f *fakeLeadsRepo) CreateLead(ctx context.Context, lead *domain.Lead) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.validPlatforms != nil && !f.validPlatforms[lead.PlatformID] {
		return "", fmt.Errorf("%w: platform not found", domain.ErrNotFound)
	}

	id := f.nextID()
	now := time.Now()
	stored := *lead
	stored.ID = id
	if stored.CurrentStatus == "" {
		stored.CurrentStatus = domain.StatusNew
	}
	stored.CreatedAt = now
	stored.LastActivityAt = now
	f.leads[id] = &stored

	if stored.MarketerID != nil {
		f.addActivity(id, stored.MarketerID, domain.ActivityCreated, json.RawMessage(`{}`), stored.LeadData, "Lead created")
	}
	return id, nil
}

func (f *fakeLeadsRepo) GetLead(ctx context.Context, leadID string) (*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lead, ok := f.leads[leadID]
	if !ok {
		return nil, fmt.Errorf("%w: lead not found", domain.ErrNotFound)
	}
	copied := *lead
	return &copied, nil
}

func (f *fakeLeadsRepo) ListLeads(ctx context.Context, filters repository.LeadFilters, limit, offset int) ([]*domain.Lead, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []*domain.Lead{}
	for _, lead := range f.leads {
		if filters.PlatformID != "" && lead.PlatformID != filters.PlatformID {
			continue
		}
		if filters.Unassigned && lead.MarketerID != nil {
			continue
		}
		if filters.MarketerID != "" && !lead.OwnedBy(filters.MarketerID) {
			continue
		}
		if filters.VisibleToMarketer != "" && !lead.OwnedBy(filters.VisibleToMarketer) {
			// 简化的可见性：fake 里只认所有权（分配可见性由 service 测试单独覆盖）
			continue
		}
		copied := *lead
		out = append(out, &copied)
	}
	return out, len(out), nil
}

func (f *fakeLeadsRepo) UpdateLead(ctx context.Context, leadID, actorID string, changes repository.LeadChanges) (*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lead, ok := f.leads[leadID]
	if !ok {
		return nil, fmt.Errorf("%w: lead not found", domain.ErrNotFound)
	}

	oldStatus := lead.CurrentStatus
	oldData := lead.LeadData

	if changes.LeadData != nil {
		lead.LeadData = changes.LeadData
	}
	if changes.CurrentStatus != nil {
		lead.CurrentStatus = *changes.CurrentStatus
	}
	if changes.NextAction != nil {
		lead.NextAction = *changes.NextAction
	}
	if changes.ClearMeeting {
		lead.NextMeetingDate = nil
	} else if changes.NextMeetingDate != nil {
		lead.NextMeetingDate = changes.NextMeetingDate
	}
	lead.LastActivityAt = time.Now()

	activityType := domain.ActivityUpdated
	notes := changes.Notes
	if changes.CurrentStatus != nil && *changes.CurrentStatus != oldStatus {
		activityType = domain.ActivityStatusChanged
		notes = fmt.Sprintf("Status changed from %s to %s", oldStatus, *changes.CurrentStatus)
	} else if changes.Notes != "" {
		activityType = domain.ActivityNoteAdded
	}
	actor := actorID
	f.addActivity(leadID, &actor, activityType, oldData, lead.LeadData, notes)

	copied := *lead
	return &copied, nil
}

func (f *fakeLeadsRepo) ClaimLead(ctx context.Context, leadID, marketerID string) (*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lead, ok := f.leads[leadID]
	if !ok {
		return nil, fmt.Errorf("%w: lead not found", domain.ErrNotFound)
	}
	if lead.MarketerID != nil {
		return nil, fmt.Errorf("%w: lead already assigned", domain.ErrConflict)
	}
	owner := marketerID
	lead.MarketerID = &owner
	lead.LastActivityAt = time.Now()
	f.addActivity(leadID, &owner, domain.ActivityUpdated, json.RawMessage(`{}`),
		json.RawMessage(`{"marketer_id":"`+marketerID+`"}`), "Lead claimed from pool")

	copied := *lead
	return &copied, nil
}

func (f *fakeLeadsRepo) OptOutLead(ctx context.Context, leadID, marketerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	lead, ok := f.leads[leadID]
	if !ok {
		return fmt.Errorf("%w: lead not found", domain.ErrNotFound)
	}
	if !lead.OwnedBy(marketerID) {
		return fmt.Errorf("%w: not the owner of this lead", domain.ErrForbidden)
	}
	lead.MarketerID = nil
	lead.LastActivityAt = time.Now()
	actor := marketerID
	f.addActivity(leadID, &actor, domain.ActivityUpdated, json.RawMessage(`{}`), json.RawMessage(`{}`), "Lead opted out, returned to pool")
	return nil
}

func (f *fakeLeadsRepo) BulkUpdateStatus(ctx context.Context, leadIDs []string, status, actorID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	affected := 0
	for _, id := range leadIDs {
		lead, ok := f.leads[id]
		if !ok {
			continue
		}
		lead.CurrentStatus = status
		lead.LastActivityAt = time.Now()
		actor := actorID
		f.addActivity(id, &actor, domain.ActivityStatusChanged, json.RawMessage(`{}`),
			json.RawMessage(`{"current_status":"`+status+`"}`), "Bulk status update to "+status)
		affected++
	}
	return affected, nil
}

func (f *fakeLeadsRepo) DeleteLead(ctx context.Context, leadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.leads[leadID]; !ok {
		return fmt.Errorf("%w: lead not found", domain.ErrNotFound)
	}
	delete(f.leads, leadID)
	return nil
}

// seedLead 直接注入一条线索
func (f *fakeLeadsRepo) seedLead(id, platformID string, marketerID *string) *domain.Lead {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	lead := &domain.Lead{
		ID:             id,
		PlatformID:     platformID,
		MarketerID:     marketerID,
		LeadData:       json.RawMessage(`{"Name":"Test"}`),
		CurrentStatus:  domain.StatusNew,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	f.leads[id] = lead
	return lead
}

// ============================================
// 内存版 PlatformsRepository
// ============================================

type fakePlatformsRepo struct {
	mu        sync.Mutex
	seq       int
	platforms map[string]*domain.Platform
	fields    map[string]*domain.Field
}

func newFakePlatformsRepo() *fakePlatformsRepo {
	return &fakePlatformsRepo{
		platforms: make(map[string]*domain.Platform),
		fields:    make(map[string]*domain.Field),
	}
}

var _ repository.PlatformsRepository = (*fakePlatformsRepo)(nil)

func (f *fakePlatformsRepo) CreatePlatform(ctx context.Context, p *domain.Platform) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	id := "platform-" + strconv.Itoa(f.seq)
	stored := *p
	stored.ID = id
	stored.CreatedAt = time.Now()
	f.platforms[id] = &stored
	return id, nil
}

func (f *fakePlatformsRepo) GetPlatform(ctx context.Context, platformID string) (*domain.Platform, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.platforms[platformID]
	if !ok {
		return nil, fmt.Errorf("%w: platform not found", domain.ErrNotFound)
	}
	copied := *p
	return &copied, nil
}

func (f *fakePlatformsRepo) ListPlatforms(ctx context.Context, visibleToMarketer string) ([]*repository.PlatformWithStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []*repository.PlatformWithStats{}
	for _, p := range f.platforms {
		out = append(out, &repository.PlatformWithStats{Platform: *p})
	}
	return out, nil
}

func (f *fakePlatformsRepo) UpdatePlatform(ctx context.Context, platformID string, name, description *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.platforms[platformID]
	if !ok {
		return fmt.Errorf("%w: platform not found", domain.ErrNotFound)
	}
	if name != nil {
		p.Name = *name
	}
	if description != nil {
		p.Description = *description
	}
	return nil
}

func (f *fakePlatformsRepo) DeletePlatform(ctx context.Context, platformID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.platforms[platformID]; !ok {
		return fmt.Errorf("%w: platform not found", domain.ErrNotFound)
	}
	delete(f.platforms, platformID)
	return nil
}

func (f *fakePlatformsRepo) CreateField(ctx context.Context, field *domain.Field) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.platforms[field.PlatformID]; !ok {
		return "", fmt.Errorf("%w: platform not found", domain.ErrNotFound)
	}
	f.seq++
	id := "field-" + strconv.Itoa(f.seq)
	stored := *field
	stored.ID = id
	if stored.DisplayOrder < 0 {
		next := 0
		for _, existing := range f.fields {
			if existing.PlatformID == field.PlatformID && existing.DisplayOrder >= next {
				next = existing.DisplayOrder + 1
			}
		}
		stored.DisplayOrder = next
	}
	f.fields[id] = &stored
	return id, nil
}

func (f *fakePlatformsRepo) ListFields(ctx context.Context, platformID string) ([]*domain.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []*domain.Field{}
	for _, field := range f.fields {
		if field.PlatformID != platformID {
			continue
		}
		copied := *field
		out = append(out, &copied)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].DisplayOrder < out[i].DisplayOrder {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakePlatformsRepo) UpdateFieldOrder(ctx context.Context, fieldID string, displayOrder int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	field, ok := f.fields[fieldID]
	if !ok {
		return fmt.Errorf("%w: field not found", domain.ErrNotFound)
	}
	field.DisplayOrder = displayOrder
	return nil
}

func (f *fakePlatformsRepo) DeleteField(ctx context.Context, fieldID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.fields[fieldID]; !ok {
		return fmt.Errorf("%w: field not found", domain.ErrNotFound)
	}
	delete(f.fields, fieldID)
	return nil
}

// ============================================
// 内存版 ActivitiesRepository / AssignmentsRepository / MarketersRepository / SharedLinksRepository
// ============================================

type fakeActivitiesRepo struct {
	mu         sync.Mutex
	seq        int
	activities []*domain.LeadActivity
}

func newFakeActivitiesRepo() *fakeActivitiesRepo { return &fakeActivitiesRepo{} }

var _ repository.ActivitiesRepository = (*fakeActivitiesRepo)(nil)

func (f *fakeActivitiesRepo) AppendActivity(ctx context.Context, a *domain.LeadActivity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	stored := *a
	stored.ID = "act-" + strconv.Itoa(f.seq)
	stored.CreatedAt = time.Now()
	f.activities = append(f.activities, &stored)
	return stored.ID, nil
}

func (f *fakeActivitiesRepo) ListLeadActivities(ctx context.Context, leadID string) ([]*repository.ActivityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []*repository.ActivityRecord{}
	for i := len(f.activities) - 1; i >= 0; i-- {
		if f.activities[i].LeadID == leadID {
			out = append(out, &repository.ActivityRecord{LeadActivity: *f.activities[i]})
		}
	}
	return out, nil
}

type fakeAssignmentsRepo struct {
	mu          sync.Mutex
	assignments map[string]bool // key: marketerID + "/" + platformID
}

func newFakeAssignmentsRepo() *fakeAssignmentsRepo {
	return &fakeAssignmentsRepo{assignments: make(map[string]bool)}
}

var _ repository.AssignmentsRepository = (*fakeAssignmentsRepo)(nil)

func assignmentKey(marketerID, platformID string) string {
	return marketerID + "/" + platformID
}

func (f *fakeAssignmentsRepo) AssignPlatform(ctx context.Context, marketerID, platformID, assignedBy string) (*domain.MarketerAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.assignments[assignmentKey(marketerID, platformID)] = true
	return &domain.MarketerAssignment{
		MarketerID: marketerID,
		PlatformID: platformID,
		AssignedBy: assignedBy,
		IsActive:   true,
		CreatedAt:  time.Now(),
	}, nil
}

func (f *fakeAssignmentsRepo) RemoveAssignment(ctx context.Context, marketerID, platformID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := assignmentKey(marketerID, platformID)
	if _, ok := f.assignments[key]; !ok {
		return fmt.Errorf("%w: assignment not found", domain.ErrNotFound)
	}
	f.assignments[key] = false
	return nil
}

func (f *fakeAssignmentsRepo) ListAssignments(ctx context.Context, marketerID string) ([]*repository.AssignmentWithPlatform, error) {
	return []*repository.AssignmentWithPlatform{}, nil
}

func (f *fakeAssignmentsRepo) IsActivelyAssigned(ctx context.Context, marketerID, platformID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.assignments[assignmentKey(marketerID, platformID)], nil
}

type fakeMarketersRepo struct {
	marketers map[string]*domain.Marketer
}

func newFakeMarketersRepo() *fakeMarketersRepo {
	return &fakeMarketersRepo{marketers: make(map[string]*domain.Marketer)}
}

var _ repository.MarketersRepository = (*fakeMarketersRepo)(nil)

func (f *fakeMarketersRepo) GetMarketer(ctx context.Context, marketerID string) (*domain.Marketer, error) {
	m, ok := f.marketers[marketerID]
	if !ok {
		return nil, fmt.Errorf("%w: marketer not found", domain.ErrNotFound)
	}
	copied := *m
	return &copied, nil
}

func (f *fakeMarketersRepo) CountActiveMarketers(ctx context.Context) (int, error) {
	return len(f.marketers), nil
}

type fakeSharedLinksRepo struct {
	mu    sync.Mutex
	seq   int
	links map[string]*domain.SharedLink // key: token
}

func newFakeSharedLinksRepo() *fakeSharedLinksRepo {
	return &fakeSharedLinksRepo{links: make(map[string]*domain.SharedLink)}
}

var _ repository.SharedLinksRepository = (*fakeSharedLinksRepo)(nil)

func (f *fakeSharedLinksRepo) CreateSharedLink(ctx context.Context, link *domain.SharedLink) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.links[link.Token]; exists {
		return "", fmt.Errorf("%w: token collision", domain.ErrConflict)
	}
	f.seq++
	stored := *link
	stored.ID = "link-" + strconv.Itoa(f.seq)
	stored.CreatedAt = time.Now()
	f.links[link.Token] = &stored
	return stored.ID, nil
}

func (f *fakeSharedLinksRepo) GetByToken(ctx context.Context, token string) (*domain.SharedLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	link, ok := f.links[token]
	if !ok {
		return nil, fmt.Errorf("%w: share link not found", domain.ErrNotFound)
	}
	copied := *link
	return &copied, nil
}
