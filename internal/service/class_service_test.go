package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"gym-booking-service/internal/model"
	"gym-booking-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresigner struct {
	key         string
	contentType string
	err         error
}

func (p *fakePresigner) PresignUpload(_ context.Context, key, contentType string) (string, error) {
	p.key, p.contentType = key, contentType
	if p.err != nil {
		return "", p.err
	}
	return "https://uploads.example.test/" + key, nil
}

func validTemplate() *model.ClassTemplate {
	return &model.ClassTemplate{
		Name:            "Power Hour",
		Type:            model.ClassTypeStrength,
		MaxCapacity:     12,
		DurationMinutes: 60,
		Price:           decimal.RequireFromString("30.00"),
		Difficulty:      model.DifficultyAdvanced,
		Location:        model.Location{Room: "Weights"},
		Schedule: model.Schedule{
			{DayOfWeek: 1, StartTime: "07:00", EndTime: "08:00", IsRecurring: true},
		},
		IsBookable: true,
	}
}

func TestClassService_CreateDefaults(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewClassService(store.Classes, NewValidator(), nil)
	trainer := Actor{UserID: uuid.New(), Role: model.RoleTrainer}

	created, err := svc.Create(context.Background(), trainer, validTemplate())
	require.NoError(t, err)
	assert.Equal(t, trainer.UserID, created.TrainerID)
	assert.Equal(t, model.ClassStatusActive, created.Status)
	assert.Equal(t, model.DefaultCancellationPolicy, created.CancellationPolicy)

	_, err = svc.Create(context.Background(), member(), validTemplate())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestClassService_CreatedFromJSONIsBookable(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	svc := NewClassService(f.store.Classes, NewValidator(), nil)

	var request model.ClassTemplate
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "Noon Circuit", "type": "cardio", "max_capacity": 8, "duration_minutes": 45,
		"price": "15.00", "difficulty": "beginner", "location": {"room": "Hall"}
	}`), &request))
	assert.True(t, request.IsBookable)

	trainer := Actor{UserID: uuid.New(), Role: model.RoleTrainer}
	class, err := svc.Create(ctx, trainer, &request)
	require.NoError(t, err)
	assert.True(t, class.IsBookable)

	start := classStart.Add(24 * time.Hour)
	instance, err := f.instances.Create(ctx, trainer, CreateInstanceInput{ClassID: class.ID, StartTime: start, EndTime: start.Add(45 * time.Minute)})
	require.NoError(t, err)

	booking, err := f.ledger.CreateBooking(ctx, member(), CreateBookingInput{ClassInstanceID: instance.ID})
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, booking.Status)

	var closed model.ClassTemplate
	require.NoError(t, json.Unmarshal([]byte(`{"name": "Closed", "is_bookable": false}`), &closed))
	assert.False(t, closed.IsBookable)
}

func TestClassService_CreateValidation(t *testing.T) {
	trainer := Actor{UserID: uuid.New(), Role: model.RoleTrainer}

	tests := []struct {
		name   string
		mutate func(c *model.ClassTemplate)
		field  string
		rule   string
	}{
		{"capacity too low", func(c *model.ClassTemplate) { c.MaxCapacity = 0 }, "max_capacity", "min"},
		{"capacity too high", func(c *model.ClassTemplate) { c.MaxCapacity = 101 }, "max_capacity", "max"},
		{"duration too short", func(c *model.ClassTemplate) { c.DurationMinutes = 10 }, "duration_minutes", "min"},
		{"duration too long", func(c *model.ClassTemplate) { c.DurationMinutes = 181 }, "duration_minutes", "max"},
		{"negative price", func(c *model.ClassTemplate) { c.Price = decimal.RequireFromString("-1") }, "price", "min"},
		{"unknown type", func(c *model.ClassTemplate) { c.Type = "boxing" }, "type", "oneof"},
		{"bad day", func(c *model.ClassTemplate) { c.Schedule[0].DayOfWeek = 7 }, "schedule[0].day_of_week", "max"},
		{"bad clock", func(c *model.ClassTemplate) { c.Schedule[0].StartTime = "25:00" }, "schedule[0].start_time", "hhmm"},
		{"end before start", func(c *model.ClassTemplate) { c.Schedule[0].EndTime = "06:00" }, "schedule[0].end_time", "gtfield"},
		{"refund above 100", func(c *model.ClassTemplate) {
			c.CancellationPolicy = model.CancellationPolicy{HoursBeforeClass: 12, RefundPercentage: 120}
		}, "cancellation_policy.refund_percentage", "max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewMemoryStore()
			svc := NewClassService(store.Classes, NewValidator(), nil)

			class := validTemplate()
			tt.mutate(class)
			_, err := svc.Create(context.Background(), trainer, class)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.rule, verr.Fields[tt.field], "fields: %v", verr.Fields)
		})
	}
}

func TestClassService_TrainerOwnership(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := NewClassService(store.Classes, NewValidator(), nil)
	owner := Actor{UserID: uuid.New(), Role: model.RoleTrainer}
	other := Actor{UserID: uuid.New(), Role: model.RoleTrainer}

	created, err := svc.Create(ctx, owner, validTemplate())
	require.NoError(t, err)

	capacity := 20
	_, err = svc.Update(ctx, other, created.ID, ClassPatch{MaxCapacity: &capacity})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.Update(ctx, owner, created.ID, ClassPatch{MaxCapacity: &capacity})
	require.NoError(t, err)
	assert.Equal(t, 20, updated.MaxCapacity)

	tooMany := 500
	_, err = svc.Update(ctx, admin, created.ID, ClassPatch{MaxCapacity: &tooMany})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestClassService_CancelledHiddenFromMembers(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := NewClassService(store.Classes, NewValidator(), nil)

	visible, err := svc.Create(ctx, admin, withTrainer(validTemplate()))
	require.NoError(t, err)
	hidden, err := svc.Create(ctx, admin, withTrainer(validTemplate()))
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, admin, hidden.ID, model.ClassStatusCancelled)
	require.NoError(t, err)

	_, err = svc.Get(ctx, member(), hidden.ID)
	assert.ErrorIs(t, err, ErrClassNotFound)

	got, err := svc.Get(ctx, admin, hidden.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClassStatusCancelled, got.Status)

	page, err := svc.List(ctx, member(), repository.ClassFilter{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, visible.ID, page.Data[0].ID)

	page, err = svc.List(ctx, member(), repository.ClassFilter{Status: model.ClassStatusCancelled})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, repository.PaginationMeta{CurrentPage: 1, PerPage: 10}, page.Meta)

	page, err = svc.List(ctx, member(), repository.ClassFilter{Status: model.ClassStatusCancelled, Page: 3, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Meta.CurrentPage)
	assert.Equal(t, 100, page.Meta.PerPage)

	page, err = svc.List(ctx, admin, repository.ClassFilter{Status: model.ClassStatusCancelled})
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)

	_, err = svc.SetStatus(ctx, admin, visible.ID, "archived")
	assert.ErrorAs(t, err, new(*ValidationError))
}

func TestClassService_ImageUpload(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	presigner := &fakePresigner{}
	svc := NewClassService(store.Classes, NewValidator(), presigner)

	created, err := svc.Create(ctx, admin, withTrainer(validTemplate()))
	require.NoError(t, err)

	_, err = svc.CreateImageUpload(ctx, admin, created.ID, "image/gif")
	assert.ErrorAs(t, err, new(*ValidationError))

	uploadedAt := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	svc.(*classService).now = func() time.Time { return uploadedAt }

	upload, err := svc.CreateImageUpload(ctx, admin, created.ID, "image/png")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("classes/%s/%d.png", created.ID, uploadedAt.UnixNano()), upload.Key)
	assert.Equal(t, upload.Key, presigner.key)
	assert.Equal(t, "image/png", presigner.contentType)
	assert.Contains(t, upload.UploadURL, upload.Key)

	_, err = svc.SetImage(ctx, admin, created.ID, "classes/"+uuid.NewString()+"/x.png")
	assert.ErrorAs(t, err, new(*ValidationError))

	withImage, err := svc.SetImage(ctx, admin, created.ID, upload.Key)
	require.NoError(t, err)
	require.NotNil(t, withImage.ImageKey)
	assert.Equal(t, upload.Key, *withImage.ImageKey)

	presigner.err = errors.New("s3 down")
	_, err = svc.CreateImageUpload(ctx, admin, created.ID, "image/jpeg")
	assert.EqualError(t, err, "s3 down")

	noStorage := NewClassService(store.Classes, NewValidator(), nil)
	_, err = noStorage.CreateImageUpload(ctx, admin, created.ID, "image/png")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func withTrainer(c *model.ClassTemplate) *model.ClassTemplate {
	c.TrainerID = uuid.New()
	return c
}
