package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/znz-systems/coldpipe/internal/campaign"
	"github.com/znz-systems/coldpipe/internal/generate"
	"github.com/znz-systems/coldpipe/internal/models"
	"github.com/znz-systems/coldpipe/internal/neverbounce"
	"github.com/znz-systems/coldpipe/internal/proxycurl"
	"github.com/znz-systems/coldpipe/internal/smartlead"
	"github.com/znz-systems/coldpipe/internal/store"
)

var errUpstream = errors.New("upstream unavailable")

type fakeRuns struct {
	mu          sync.Mutex
	runs        map[uuid.UUID]*models.WorkflowRun
	order       []uuid.UUID
	checkpoints map[uuid.UUID][]models.StepCheckpoint
	claimErr    error
	requeued    []time.Time
	requeueN    int64
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{
		runs:        map[uuid.UUID]*models.WorkflowRun{},
		checkpoints: map[uuid.UUID][]models.StepCheckpoint{},
	}
}

func (f *fakeRuns) EnqueueWorkflowRun(_ context.Context, params models.WorkflowRunCreateParams) (*models.WorkflowRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run := &models.WorkflowRun{
		ID:           uuid.New(),
		ContactEmail: params.ContactEmail,
		CampaignID:   params.CampaignID,
		Payload:      params.Payload,
		Status:       models.RunStatusQueued,
		AvailableAt:  params.AvailableAt,
		CreatedAt:    time.Now(),
	}
	f.runs[run.ID] = run
	f.order = append(f.order, run.ID)
	cp := *run
	return &cp, nil
}

func (f *fakeRuns) ClaimNextWorkflowRun(context.Context) (*models.WorkflowRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	busy := make(map[string]bool)
	for _, run := range f.runs {
		if run.Status == models.RunStatusRunning {
			busy[run.ContactEmail] = true
		}
	}
	for _, id := range f.order {
		run := f.runs[id]
		if run.Status == models.RunStatusQueued && !busy[run.ContactEmail] {
			run.Status = models.RunStatusRunning
			now := time.Now()
			run.LockedAt = &now
			cp := *run
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRuns) GetWorkflowRunByID(_ context.Context, id uuid.UUID) (*models.WorkflowRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *run
	return &cp, nil
}

func (f *fakeRuns) ListStepCheckpoints(_ context.Context, runID uuid.UUID) ([]models.StepCheckpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.StepCheckpoint(nil), f.checkpoints[runID]...), nil
}

func (f *fakeRuns) SaveStepCheckpoint(_ context.Context, runID uuid.UUID, name string, output []byte, attempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cp := range f.checkpoints[runID] {
		if cp.Name == name {
			return nil
		}
	}
	f.checkpoints[runID] = append(f.checkpoints[runID], models.StepCheckpoint{
		RunID:       runID,
		Name:        name,
		Output:      append(json.RawMessage(nil), output...),
		Attempts:    attempts,
		CompletedAt: time.Now(),
	})
	if run, ok := f.runs[runID]; ok {
		run.Step = name
		run.StepAttempts = 0
		run.LastError = ""
	}
	return nil
}

func (f *fakeRuns) MarkWorkflowRunRetry(_ context.Context, runID uuid.UUID, step string, attempts int, next time.Time, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return sql.ErrNoRows
	}
	run.Status = models.RunStatusQueued
	run.Step = step
	run.StepAttempts = attempts
	run.AvailableAt = next
	run.LastError = lastError
	run.LockedAt = nil
	return nil
}

func (f *fakeRuns) MarkWorkflowRunFinished(_ context.Context, runID uuid.UUID, status, step, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return sql.ErrNoRows
	}
	now := time.Now()
	run.Status = status
	run.Step = step
	run.LastError = lastError
	run.DoneAt = &now
	run.LockedAt = nil
	return nil
}

func (f *fakeRuns) RequeueStaleWorkflowRuns(_ context.Context, lockedBefore time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeued = append(f.requeued, lockedBefore)
	return f.requeueN, nil
}

func (f *fakeRuns) names(runID uuid.UUID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, cp := range f.checkpoints[runID] {
		names = append(names, cp.Name)
	}
	return names
}

type fakeContacts struct {
	mu       sync.Mutex
	byID     map[string]*models.Contact
	nextID   int
	creates  int
	updates  []models.ContactUpdate
	raceOnce *models.Contact
}

func newFakeContacts() *fakeContacts {
	return &fakeContacts{byID: map[string]*models.Contact{}}
}

func (f *fakeContacts) put(c models.Contact) *models.Contact {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		f.nextID++
		c.ID = fmt.Sprintf("contact-%d", f.nextID)
	}
	f.byID[c.ID] = &c
	return &c
}

func (f *fakeContacts) CreateContact(_ context.Context, params models.ContactCreateParams) (*models.Contact, error) {
	f.mu.Lock()
	if f.raceOnce != nil {
		// Simulates another run inserting the same email first.
		c := *f.raceOnce
		f.raceOnce = nil
		f.byID[c.ID] = &c
		f.mu.Unlock()
		return nil, errors.Join(store.ErrConflict, errors.New("duplicate key"))
	}
	for _, c := range f.byID {
		if c.Email == params.Email {
			f.mu.Unlock()
			return nil, errors.Join(store.ErrConflict, errors.New("duplicate key"))
		}
	}
	f.creates++
	f.mu.Unlock()
	return f.put(models.Contact{Email: params.Email, LinkedinURL: params.LinkedinURL, ContactJSON: params.ContactJSON}), nil
}

func (f *fakeContacts) GetContactByEmail(_ context.Context, email string) (*models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byID {
		if c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeContacts) GetContactByID(_ context.Context, id string) (*models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (f *fakeContacts) UpdateContact(_ context.Context, id string, u models.ContactUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	f.updates = append(f.updates, u)
	if u.ProfileJSON != nil {
		c.ProfileJSON = u.ProfileJSON
	}
	c.EmailHasBeenChecked = c.EmailHasBeenChecked || u.EmailHasBeenChecked
	if u.EmailIsValid != nil {
		c.EmailIsValid = c.EmailIsValid || *u.EmailIsValid
	}
	c.EmailsWritten = c.EmailsWritten || u.EmailsWritten
	c.LinkedinProfileFetched = c.LinkedinProfileFetched || u.LinkedinProfileFetched
	c.SyncedToSmartlead = c.SyncedToSmartlead || u.SyncedToSmartlead
	return nil
}

func (f *fakeContacts) byEmail(email string) *models.Contact {
	c, _ := f.GetContactByEmail(context.Background(), email)
	return c
}

type fakeEmails struct {
	mu   sync.Mutex
	rows []models.GeneratedEmail
}

func (f *fakeEmails) CreateGeneratedEmail(_ context.Context, p models.GeneratedEmailCreateParams) (*models.GeneratedEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.rows {
		if e.ContactID == p.ContactID && e.CampaignID == p.CampaignID && e.SequenceNumber == p.SequenceNumber {
			cp := e
			return &cp, nil
		}
	}
	e := models.GeneratedEmail{
		ID:             fmt.Sprintf("email-%d", len(f.rows)+1),
		ContactID:      p.ContactID,
		CampaignID:     p.CampaignID,
		SequenceNumber: p.SequenceNumber,
		Subject:        p.Subject,
		Message:        p.Message,
		CreatedAt:      time.Now(),
	}
	f.rows = append(f.rows, e)
	return &e, nil
}

func (f *fakeEmails) ListGeneratedEmails(_ context.Context, contactID, campaignID string) ([]models.GeneratedEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.GeneratedEmail
	for _, e := range f.rows {
		if e.ContactID == contactID && e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

type fakeResolver struct {
	res   *campaign.Resolution
	err   error
	calls int
}

func (f *fakeResolver) Resolve(_ context.Context, internalID string) (*campaign.Resolution, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	res := *f.res
	res.InternalCampaignID = internalID
	return &res, nil
}

type fakeVerifier struct {
	credits     int64
	result      string
	verifyErr   error
	creditCalls int
	verifyCalls int
}

func (f *fakeVerifier) Credits(context.Context) (int64, error) {
	f.creditCalls++
	return f.credits, nil
}

func (f *fakeVerifier) Verify(context.Context, string) (*neverbounce.CheckResponse, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &neverbounce.CheckResponse{Result: f.result}, nil
}

type fakeEnricher struct {
	credits     int64
	profile     *proxycurl.Profile
	fetchErr    error
	creditCalls int
	fetchCalls  int
}

func (f *fakeEnricher) Credits(context.Context) (int64, error) {
	f.creditCalls++
	return f.credits, nil
}

func (f *fakeEnricher) FetchProfile(context.Context, string) (*proxycurl.Profile, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.profile, nil
}

type fakeGenerator struct {
	mu       sync.Mutex
	requests []generate.Request
	// failures holds how many times generation of a position fails before
	// succeeding.
	failures map[int]int
}

func (f *fakeGenerator) Generate(_ context.Context, req generate.Request) (generate.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.failures[req.SequenceNumber] > 0 {
		f.failures[req.SequenceNumber]--
		return generate.Email{}, errUpstream
	}
	return generate.Email{
		Subject: fmt.Sprintf("Subject %d", req.SequenceNumber),
		Message: fmt.Sprintf("Message %d", req.SequenceNumber),
	}, nil
}

type fakeUploader struct {
	err      error
	calls    int
	campaign int64
	leads    []smartlead.Lead
}

func (f *fakeUploader) UploadLeads(_ context.Context, campaignID int64, leads []smartlead.Lead) (*smartlead.UploadResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.campaign = campaignID
	f.leads = append(f.leads, leads...)
	return &smartlead.UploadResult{OK: true, UploadCount: len(leads), TotalLeads: len(leads)}, nil
}
