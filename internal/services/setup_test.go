package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/Davzs/adezz/internal/config"
	"github.com/Davzs/adezz/internal/db"
	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/utils"
)

const testDBName = "marketplace_services_test"

func testConfig() *config.Config {
	return &config.Config{
		AppName:              "Marketplace",
		AppBaseURL:           "http://localhost:3000",
		PasswordMinLength:    8,
		UnsaveActivityAction: "delete",
		OfferTTL:             72 * time.Hour,
	}
}

// recordingNotifier collects notifications instead of enqueueing them.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []MessageNotification
}

func (n *recordingNotifier) NotifyNewMessage(_ context.Context, m MessageNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, m)
	return nil
}

func (n *recordingNotifier) all() []MessageNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]MessageNotification(nil), n.sent...)
}

type testEnv struct {
	db            *mongo.Database
	cfg           *config.Config
	log           *zap.Logger
	users         IUserService
	listings      IListingService
	conversations IConversationService
	messages      IMessageService
	newsletter    INewsletterService
	notifier      *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database := utils.SetupTestDB(t, testDBName,
		db.UsersCollection,
		db.ListingsCollection,
		db.ConversationsCollection,
		db.MessagesCollection,
		db.NewsletterCollection,
		db.EmailTemplatesCollection,
	)
	require.NoError(t, db.EnsureIndexes(context.Background(), database))

	cfg := testConfig()
	log := zaptest.NewLogger(t)
	env := &testEnv{db: database, cfg: cfg, log: log, notifier: &recordingNotifier{}}
	env.users = NewUserService(database, cfg, log)
	env.listings = NewListingService(database, cfg, log, env.users, nil)
	env.conversations = NewConversationService(database, cfg, log)
	env.messages = NewMessageService(database, cfg, log, env.conversations, env.users, env.listings, env.notifier)
	env.newsletter = NewNewsletterService(database, cfg, log)
	return env
}

var userSeq int

func (e *testEnv) mustUser(t *testing.T, name string) *models.User {
	t.Helper()
	userSeq++
	user, err := e.users.Register(context.Background(), RegisterInput{
		Name:     name,
		Email:    fmt.Sprintf("%s.%d@example.com", name, userSeq),
		Password: "password123",
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) mustListing(t *testing.T, owner utils.SixID, price float64) *models.Listing {
	t.Helper()
	listing, err := e.listings.CreateListing(context.Background(), owner, CreateListingInput{
		Title:       "Mountain bike",
		Description: "Barely used mountain bike, 21 gears.",
		Price:       price,
		Category:    "Sports",
		Condition:   "Like New",
		Location:    "Berlin",
	})
	require.NoError(t, err)
	return listing
}
