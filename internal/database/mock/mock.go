// Package mock provides in-memory store implementations for tests.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/scanin/scanin/internal/database"
)

// state is the shared in-memory backing for all mock stores. It enforces the
// same uniqueness rules as the PostgreSQL backend, including the
// (trainee, day) constraint that surfaces database.ErrConflict.
type state struct {
	mu sync.Mutex

	trainees    map[int64]database.Trainee
	templates   []database.FaceTemplate
	records     map[int64]database.AttendanceRecord
	policy      *database.ScanPolicy
	admins      map[string]database.Admin
	nextTrainee int64
	nextTmpl    int64
	nextRecord  int64
	nextAdmin   int64
}

// Stores bundles one mock implementation of every repository interface,
// backed by shared state so cascades behave like the real database.
type Stores struct {
	Trainees   *TraineeStore
	Attendance *AttendanceStore
	Policy     *PolicyStore
	Admins     *AdminStore
}

func New() *Stores {
	st := &state{
		trainees: make(map[int64]database.Trainee),
		records:  make(map[int64]database.AttendanceRecord),
		admins:   make(map[string]database.Admin),
	}
	return &Stores{
		Trainees:   &TraineeStore{st: st},
		Attendance: &AttendanceStore{st: st},
		Policy:     &PolicyStore{st: st},
		Admins:     &AdminStore{st: st},
	}
}

// TraineeStore implements database.TraineeWriter.
type TraineeStore struct {
	st *state
}

func (s *TraineeStore) Get(ctx context.Context, id int64) (*database.Trainee, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	t, ok := s.st.trainees[id]
	if !ok {
		return nil, database.ErrTraineeNotFound
	}
	return &t, nil
}

func (s *TraineeStore) GetByName(ctx context.Context, name string) (*database.Trainee, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	for _, t := range s.st.trainees {
		if t.UniqueName == name {
			out := t
			return &out, nil
		}
	}
	return nil, database.ErrTraineeNotFound
}

func (s *TraineeStore) List(ctx context.Context) ([]database.Trainee, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	out := make([]database.Trainee, 0, len(s.st.trainees))
	for _, t := range s.st.trainees {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *TraineeStore) AllTemplates(ctx context.Context) ([]database.FaceTemplate, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	out := make([]database.FaceTemplate, len(s.st.templates))
	copy(out, s.st.templates)
	return out, nil
}

func (s *TraineeStore) TemplatesByTrainee(ctx context.Context, traineeID int64) ([]database.FaceTemplate, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	var out []database.FaceTemplate
	for _, tmpl := range s.st.templates {
		if tmpl.TraineeID == traineeID {
			out = append(out, tmpl)
		}
	}
	return out, nil
}

func (s *TraineeStore) Create(ctx context.Context, trainee *database.Trainee, template *database.FaceTemplate) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	for _, t := range s.st.trainees {
		if t.UniqueName == trainee.UniqueName {
			return database.ErrDuplicateName
		}
	}

	s.st.nextTrainee++
	trainee.ID = s.st.nextTrainee
	if trainee.CreatedAt.IsZero() {
		trainee.CreatedAt = time.Now()
	}
	s.st.trainees[trainee.ID] = *trainee

	s.st.nextTmpl++
	template.ID = s.st.nextTmpl
	template.TraineeID = trainee.ID
	s.st.templates = append(s.st.templates, *template)
	return nil
}

func (s *TraineeStore) AddTemplate(ctx context.Context, template *database.FaceTemplate) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if _, ok := s.st.trainees[template.TraineeID]; !ok {
		return database.ErrTraineeNotFound
	}
	s.st.nextTmpl++
	template.ID = s.st.nextTmpl
	s.st.templates = append(s.st.templates, *template)
	return nil
}

func (s *TraineeStore) Delete(ctx context.Context, id int64) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if _, ok := s.st.trainees[id]; !ok {
		return database.ErrTraineeNotFound
	}
	delete(s.st.trainees, id)

	kept := s.st.templates[:0]
	for _, tmpl := range s.st.templates {
		if tmpl.TraineeID != id {
			kept = append(kept, tmpl)
		}
	}
	s.st.templates = kept

	// Cascade, like the foreign key does in PostgreSQL.
	for rid, rec := range s.st.records {
		if rec.TraineeID == id {
			delete(s.st.records, rid)
		}
	}
	return nil
}

// AttendanceStore implements database.AttendanceStore.
type AttendanceStore struct {
	st *state
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func (s *AttendanceStore) GetDay(ctx context.Context, traineeID int64, day time.Time) (*database.AttendanceRecord, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	for _, rec := range s.st.records {
		if rec.TraineeID == traineeID && sameDay(rec.Day, day) {
			out := rec
			return &out, nil
		}
	}
	return nil, nil
}

func (s *AttendanceStore) GetByID(ctx context.Context, id int64) (*database.AttendanceRecord, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	rec, ok := s.st.records[id]
	if !ok {
		return nil, database.ErrRecordNotFound
	}
	return &rec, nil
}

func (s *AttendanceStore) CreateCheckin(ctx context.Context, rec *database.AttendanceRecord) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	for _, existing := range s.st.records {
		if existing.TraineeID == rec.TraineeID && sameDay(existing.Day, rec.Day) {
			return database.ErrConflict
		}
	}

	s.st.nextRecord++
	rec.ID = s.st.nextRecord
	s.st.records[rec.ID] = *rec
	return nil
}

func (s *AttendanceStore) SetCheckout(ctx context.Context, id int64, at time.Time, image string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	rec, ok := s.st.records[id]
	if !ok {
		return database.ErrRecordNotFound
	}
	rec.CheckoutAt = &at
	rec.CheckoutImage = image
	s.st.records[id] = rec
	return nil
}

func (s *AttendanceStore) Update(ctx context.Context, id int64, patch database.AttendancePatch) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	rec, ok := s.st.records[id]
	if !ok {
		return database.ErrRecordNotFound
	}
	if patch.CheckinAt != nil {
		rec.CheckinAt = patch.CheckinAt
	}
	if patch.CheckoutAt != nil {
		rec.CheckoutAt = patch.CheckoutAt
	}
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	s.st.records[id] = rec
	return nil
}

func (s *AttendanceStore) List(ctx context.Context, filter database.AttendanceFilter) ([]database.AttendanceRecord, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	var out []database.AttendanceRecord
	for _, rec := range s.st.records {
		if filter.Day != nil && !sameDay(rec.Day, *filter.Day) {
			continue
		}
		if filter.TraineeID != nil && rec.TraineeID != *filter.TraineeID {
			continue
		}
		if filter.From != nil && rec.Day.Before(*filter.From) {
			continue
		}
		if filter.To != nil && rec.Day.After(*filter.To) {
			continue
		}
		if t, ok := s.st.trainees[rec.TraineeID]; ok {
			rec.TraineeName = t.UniqueName
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.After(out[j].Day)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *AttendanceStore) AbsentNames(ctx context.Context, day time.Time) ([]string, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	present := make(map[int64]bool)
	for _, rec := range s.st.records {
		if sameDay(rec.Day, day) {
			present[rec.TraineeID] = true
		}
	}

	var names []string
	for _, t := range s.st.trainees {
		if !present[t.ID] {
			names = append(names, t.UniqueName)
		}
	}
	sort.Strings(names)
	return names, nil
}

// PolicyStore implements database.PolicyStore.
type PolicyStore struct {
	st *state
}

func (s *PolicyStore) Get(ctx context.Context) (*database.ScanPolicy, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if s.st.policy == nil {
		// Same defaults the real backend seeds on first startup.
		return &database.ScanPolicy{
			SimilarityThreshold:  0.75,
			WorkStartTime:        "09:00",
			GracePeriodMinutes:   10,
			LivenessCheckEnabled: true,
		}, nil
	}
	out := *s.st.policy
	return &out, nil
}

func (s *PolicyStore) Put(ctx context.Context, policy *database.ScanPolicy) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	p := *policy
	p.UpdatedAt = time.Now()
	s.st.policy = &p
	return nil
}

// AdminStore implements database.AdminStore.
type AdminStore struct {
	st *state
}

func (s *AdminStore) GetByUsername(ctx context.Context, username string) (*database.Admin, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	a, ok := s.st.admins[username]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *AdminStore) Create(ctx context.Context, admin *database.Admin) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	s.st.nextAdmin++
	admin.ID = s.st.nextAdmin
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now()
	}
	s.st.admins[admin.Username] = *admin
	return nil
}

// Interface compliance checks.
var (
	_ database.TraineeWriter   = (*TraineeStore)(nil)
	_ database.AttendanceStore = (*AttendanceStore)(nil)
	_ database.PolicyStore     = (*PolicyStore)(nil)
	_ database.AdminStore      = (*AdminStore)(nil)
)
