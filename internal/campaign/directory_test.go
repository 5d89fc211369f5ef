package campaign

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/znz-systems/coldpipe/internal/models"
	"github.com/znz-systems/coldpipe/internal/smartlead"
)

type fakeStore struct {
	campaigns map[string]*models.Campaign
	getErr    error
	createErr error
}

func (f *fakeStore) GetCampaignByID(_ context.Context, id string) (*models.Campaign, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	c, ok := f.campaigns[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (f *fakeStore) CreateCampaign(_ context.Context, name string, smartleadID int64) (*models.Campaign, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	c := &models.Campaign{ID: "c-" + name, Name: name, SmartleadCampaignID: smartleadID}
	if f.campaigns == nil {
		f.campaigns = map[string]*models.Campaign{}
	}
	f.campaigns[c.ID] = c
	return c, nil
}

type fakePlatform struct {
	campaigns []smartlead.Campaign
	getErr    error
	// answerAs makes GetCampaign return this id regardless of the request.
	answerAs int64
	nextID   int64
	deleted  []int64
	gets     []int64
}

func (f *fakePlatform) GetCampaign(_ context.Context, id int64) (*smartlead.Campaign, error) {
	f.gets = append(f.gets, id)
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, c := range f.campaigns {
		if c.ID == id {
			if f.answerAs != 0 {
				c.ID = f.answerAs
			}
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", smartlead.ErrCampaignNotFound, id)
}

func (f *fakePlatform) CreateCampaign(_ context.Context, name string) (*smartlead.CreatedCampaign, error) {
	f.nextID++
	f.campaigns = append(f.campaigns, smartlead.Campaign{ID: f.nextID, Name: name})
	return &smartlead.CreatedCampaign{OK: true, ID: f.nextID, Name: name}, nil
}

func (f *fakePlatform) DeleteCampaign(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func newFixture() (*fakeStore, *fakePlatform) {
	store := &fakeStore{campaigns: map[string]*models.Campaign{
		"c1": {ID: "c1", Name: "Spring", SmartleadCampaignID: 77},
	}}
	platform := &fakePlatform{campaigns: []smartlead.Campaign{
		{ID: 12, Name: "Fall"},
		{ID: 77, Name: "Spring"},
	}}
	return store, platform
}

func TestResolve(t *testing.T) {
	store, platform := newFixture()
	res, err := NewDirectory(store, platform).Resolve(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, &Resolution{InternalCampaignID: "c1", ExternalCampaignID: 77, Name: "Spring"}, res)
	assert.Equal(t, []int64{77}, platform.gets)
}

func TestResolveToleratesRenamedPlatformCampaign(t *testing.T) {
	store, platform := newFixture()
	platform.campaigns[1].Name = "Spring 2026"

	res, err := NewDirectory(store, platform).Resolve(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(77), res.ExternalCampaignID)
	assert.Equal(t, "Spring", res.Name)
}

func TestResolveFailures(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*fakeStore, *fakePlatform)
		id        string
		wantErr   error
		wantFatal bool
	}{
		{
			name:      "internal_missing",
			id:        "nope",
			wantErr:   ErrCampaignNotFound,
			wantFatal: true,
		},
		{
			name: "platform_missing",
			id:   "c1",
			mutate: func(_ *fakeStore, p *fakePlatform) {
				p.campaigns = p.campaigns[:1]
			},
			wantErr:   ErrExternalCampaignNotFound,
			wantFatal: true,
		},
		{
			name: "stored_id_unknown_to_platform",
			id:   "c1",
			mutate: func(s *fakeStore, _ *fakePlatform) {
				s.campaigns["c1"].SmartleadCampaignID = 99
			},
			wantErr:   ErrExternalCampaignNotFound,
			wantFatal: true,
		},
		{
			name: "id_mismatch",
			id:   "c1",
			mutate: func(_ *fakeStore, p *fakePlatform) {
				p.answerAs = 78
			},
			wantErr:   ErrMismatch,
			wantFatal: true,
		},
		{
			name: "platform_down",
			id:   "c1",
			mutate: func(_ *fakeStore, p *fakePlatform) {
				p.getErr = errors.New("connection reset")
			},
			wantFatal: false,
		},
		{
			name: "store_down",
			id:   "c1",
			mutate: func(s *fakeStore, _ *fakePlatform) {
				s.getErr = errors.New("too many connections")
			},
			wantFatal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, platform := newFixture()
			if tt.mutate != nil {
				tt.mutate(store, platform)
			}
			_, err := NewDirectory(store, platform).Resolve(context.Background(), tt.id)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.wantFatal, IsFatal(err))
		})
	}
}

func TestCreateKeepsRecordsInAgreement(t *testing.T) {
	store, platform := newFixture()
	platform.nextID = 100
	d := NewDirectory(store, platform)

	c, err := d.Create(context.Background(), "Winter")
	require.NoError(t, err)
	assert.Equal(t, int64(101), c.SmartleadCampaignID)

	res, err := d.Resolve(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(101), res.ExternalCampaignID)
}

func TestCreateRemovesPlatformCampaignOnStoreFailure(t *testing.T) {
	store, platform := newFixture()
	store.createErr = errors.New("duplicate")
	platform.nextID = 5

	_, err := NewDirectory(store, platform).Create(context.Background(), "Winter")
	require.Error(t, err)
	assert.Equal(t, []int64{6}, platform.deleted)
}
