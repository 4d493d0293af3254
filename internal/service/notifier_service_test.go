package service

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/confero-api/internal/models"
	appErrors "github.com/noah-isme/confero-api/pkg/errors"
	"github.com/noah-isme/confero-api/pkg/jobs"
	"github.com/noah-isme/confero-api/pkg/mailer"
)

type captureMailer struct {
	sent chan mailer.Message
}

func (m *captureMailer) Send(msg mailer.Message) error {
	m.sent <- msg
	return nil
}

func TestNotifyDecisionDeliversToOwner(t *testing.T) {
	users := &mockUserReader{users: map[string]*models.User{
		"owner": {ID: "owner", Email: "author@example.org", Roles: pq.StringArray{"USER"}, Active: true},
	}}
	mail := &captureMailer{sent: make(chan mailer.Message, 1)}
	svc := NewNotifierService(users, mail, jobs.QueueConfig{Workers: 1}, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	submission := completeSubmission("s1", "owner", models.StatusAccepted)
	err := svc.NotifyDecision(ctx, submission, models.DecisionAccept, "great work")
	require.NoError(t, err)

	select {
	case msg := <-mail.sent:
		assert.Equal(t, "author@example.org", msg.To)
		assert.Contains(t, msg.Subject, "A Paper")
		assert.Contains(t, msg.Body, "accepted")
		assert.Contains(t, msg.Body, "great work")
	case <-time.After(2 * time.Second):
		t.Fatal("decision notice was never delivered")
	}
}

func TestNotifyDecisionRejectBody(t *testing.T) {
	users := &mockUserReader{users: map[string]*models.User{
		"owner": {ID: "owner", Email: "author@example.org", Roles: pq.StringArray{"USER"}, Active: true},
	}}
	mail := &captureMailer{sent: make(chan mailer.Message, 1)}
	svc := NewNotifierService(users, mail, jobs.QueueConfig{Workers: 1}, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	submission := completeSubmission("s1", "owner", models.StatusRejected)
	require.NoError(t, svc.NotifyDecision(ctx, submission, models.DecisionReject, ""))

	select {
	case msg := <-mail.sent:
		assert.Contains(t, msg.Body, "not been accepted")
		assert.NotContains(t, msg.Body, "Committee comments")
	case <-time.After(2 * time.Second):
		t.Fatal("decision notice was never delivered")
	}
}

func TestNotifyDecisionMissingOwner(t *testing.T) {
	users := &mockUserReader{users: map[string]*models.User{}}
	mail := &captureMailer{sent: make(chan mailer.Message, 1)}
	svc := NewNotifierService(users, mail, jobs.QueueConfig{Workers: 1}, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	submission := completeSubmission("s1", "ghost", models.StatusAccepted)
	err := svc.NotifyDecision(ctx, submission, models.DecisionAccept, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotificationFailed.Code, appErrors.FromError(err).Code)
}

func TestNotifyDecisionQueueNotStarted(t *testing.T) {
	users := &mockUserReader{users: map[string]*models.User{
		"owner": {ID: "owner", Email: "author@example.org", Roles: pq.StringArray{"USER"}, Active: true},
	}}
	mail := &captureMailer{sent: make(chan mailer.Message, 1)}
	svc := NewNotifierService(users, mail, jobs.QueueConfig{Workers: 1}, nil, zap.NewNop())

	submission := completeSubmission("s1", "owner", models.StatusAccepted)
	err := svc.NotifyDecision(context.Background(), submission, models.DecisionAccept, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotificationFailed.Code, appErrors.FromError(err).Code)
}

var _ notifierUserReader = (*mockUserReader)(nil)
