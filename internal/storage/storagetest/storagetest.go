// ABOUTME: Backend conformance suite for storage.Store implementations
// ABOUTME: Each backend's tests call Run with a factory returning a fresh store
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/dmagent/internal/models"
	"github.com/harper/dmagent/internal/storage"
)

// Factory returns an empty, initialized store. The suite closes it.
type Factory func(t *testing.T) storage.Store

// Run exercises every Store operation against the backend built by newStore
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"UpsertCreatesLeadAndConversation", testUpsertCreatesLeadAndConversation},
		{"UpsertIsIdempotent", testUpsertIsIdempotent},
		{"UpsertRejectsEmptyHandle", testUpsertRejectsEmptyHandle},
		{"GetLeadByHandleMissing", testGetLeadByHandleMissing},
		{"ListAndCountLeads", testListAndCountLeads},
		{"LeadCounters", testLeadCounters},
		{"MutationsOnMissingLead", testMutationsOnMissingLead},
		{"ConversationStateAndCount", testConversationStateAndCount},
		{"HistoryOrder", testHistoryOrder},
		{"RecordTurn", testRecordTurn},
		{"RecordTurnMismatchStoresNothing", testRecordTurnMismatchStoresNothing},
		{"Transition", testTransition},
		{"BotStateSeeded", testBotStateSeeded},
		{"DMCountRollsOver", testDMCountRollsOver},
		{"PauseAndRejections", testPauseAndRejections},
		{"AccountDateAndSession", testAccountDateAndSession},
		{"ConcurrentScoreUpdates", testConcurrentScoreUpdates},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func addLead(t *testing.T, s storage.Store, handle string) *models.Lead {
	t.Helper()
	ctx := context.Background()
	_, err := s.UpsertLead(ctx, models.NewLead{Handle: handle, Bio: "bio of " + handle, Niche: models.NicheEcommerce})
	require.NoError(t, err)
	lead, err := s.GetLeadByHandle(ctx, handle)
	require.NoError(t, err)
	require.NotNil(t, lead)
	return lead
}

func testUpsertCreatesLeadAndConversation(t *testing.T, s storage.Store) {
	ctx := context.Background()
	id, err := s.UpsertLead(ctx, models.NewLead{Handle: "@Shop.UZ", Bio: "Online shop", LastPostExcerpt: "Yangi kolleksiya"})
	require.NoError(t, err)
	assert.NotZero(t, id)

	lead, err := s.GetLeadByHandle(ctx, "shop.uz")
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, id, lead.ID)
	assert.Equal(t, "shop.uz", lead.Handle)
	assert.Equal(t, "Online shop", lead.Bio)
	assert.Equal(t, "Yangi kolleksiya", lead.LastPostExcerpt)
	assert.Equal(t, models.NicheBusiness, lead.Niche)
	assert.Equal(t, models.LeadNew, lead.Status)
	assert.Zero(t, lead.ConfidenceScore)
	assert.False(t, lead.CreatedAt.IsZero())

	conv, err := s.GetConversation(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, id, conv.LeadID)
	assert.Equal(t, models.StateNew, conv.State)
	assert.Zero(t, conv.MessageCount)
	assert.Nil(t, conv.LastMessageAt)
}

func testUpsertIsIdempotent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	first, err := s.UpsertLead(ctx, models.NewLead{Handle: "repeat", Bio: "original"})
	require.NoError(t, err)
	_, err = s.AddLeadScore(ctx, first, 3)
	require.NoError(t, err)

	second, err := s.UpsertLead(ctx, models.NewLead{Handle: "REPEAT", Bio: "changed"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	lead, err := s.GetLeadByHandle(ctx, "repeat")
	require.NoError(t, err)
	assert.Equal(t, "original", lead.Bio, "duplicate upsert must not overwrite")
	assert.Equal(t, 3, lead.ConfidenceScore)

	leads, err := s.ListLeads(ctx, storage.LeadFilter{})
	require.NoError(t, err)
	assert.Len(t, leads, 1)
}

func testUpsertRejectsEmptyHandle(t *testing.T, s storage.Store) {
	_, err := s.UpsertLead(context.Background(), models.NewLead{Handle: "  @ "})
	assert.Error(t, err)
}

func testGetLeadByHandleMissing(t *testing.T, s storage.Store) {
	ctx := context.Background()
	lead, err := s.GetLeadByHandle(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, lead)

	conv, err := s.GetConversation(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func testListAndCountLeads(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := addLead(t, s, "alpha")
	addLead(t, s, "bravo")
	c := addLead(t, s, "charlie")
	require.NoError(t, s.UpdateLeadStatus(ctx, a.ID, models.LeadContacted))
	require.NoError(t, s.UpdateLeadStatus(ctx, c.ID, models.LeadContacted))

	all, err := s.ListLeads(ctx, storage.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, []string{all[0].Handle, all[1].Handle, all[2].Handle})

	fresh, err := s.ListLeads(ctx, storage.LeadFilter{Status: models.LeadNew})
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "bravo", fresh[0].Handle)

	limited, err := s.ListLeads(ctx, storage.LeadFilter{Status: models.LeadContacted, Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "alpha", limited[0].Handle)

	counts, err := s.CountLeadsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[models.LeadStatus]int{models.LeadNew: 1, models.LeadContacted: 2}, counts)
}

func testLeadCounters(t *testing.T, s storage.Store) {
	ctx := context.Background()
	lead := addLead(t, s, "counter")

	score, err := s.AddLeadScore(ctx, lead.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, score)
	score, err = s.AddLeadScore(ctx, lead.ID, -5)
	require.NoError(t, err)
	assert.Equal(t, -3, score)

	n, err := s.IncrementLeadRejections(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.IncrementLeadRejections(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.ResetLeadRejections(ctx, lead.ID))
	got, err := s.GetLeadByHandle(ctx, "counter")
	require.NoError(t, err)
	assert.Zero(t, got.ConsecutiveRejections)
	assert.Equal(t, -3, got.ConfidenceScore)
}

func testMutationsOnMissingLead(t *testing.T, s storage.Store) {
	ctx := context.Background()
	const missing = int64(424242)

	err := s.UpdateLeadStatus(ctx, missing, models.LeadContacted)
	assert.True(t, errors.Is(err, storage.ErrNotFound), "UpdateLeadStatus: %v", err)
	assert.True(t, storage.IsStoreError(err))

	_, err = s.AddLeadScore(ctx, missing, 1)
	assert.True(t, errors.Is(err, storage.ErrNotFound), "AddLeadScore: %v", err)

	_, err = s.IncrementMessageCount(ctx, missing)
	assert.True(t, errors.Is(err, storage.ErrNotFound), "IncrementMessageCount: %v", err)

	_, err = s.AppendMessage(ctx, missing, models.RoleBot, "hello")
	assert.True(t, errors.Is(err, storage.ErrNotFound), "AppendMessage: %v", err)
}

func testConversationStateAndCount(t *testing.T, s storage.Store) {
	ctx := context.Background()
	lead := addLead(t, s, "talker")

	require.NoError(t, s.UpdateConversationState(ctx, lead.ID, models.StateFirstSent))
	n, err := s.IncrementMessageCount(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.IncrementMessageCount(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	conv, err := s.GetConversation(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateFirstSent, conv.State)
	assert.Equal(t, 2, conv.MessageCount)
}

func testHistoryOrder(t *testing.T, s storage.Store) {
	ctx := context.Background()
	lead := addLead(t, s, "historian")
	conv, err := s.GetConversation(ctx, lead.ID)
	require.NoError(t, err)

	empty, err := s.History(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	turns := []struct {
		role    models.Role
		content string
	}{
		{models.RoleBot, "Assalomu alaykum!"},
		{models.RoleUser, "Salom"},
		{models.RoleBot, "Biznesingiz qanday?"},
		{models.RoleUser, "Yaxshi, rahmat"},
	}
	for _, turn := range turns {
		msg, err := s.AppendMessage(ctx, conv.ID, turn.role, turn.content)
		require.NoError(t, err)
		assert.NotZero(t, msg.ID)
		assert.Equal(t, conv.ID, msg.ConversationID)
	}

	history, err := s.History(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, history, len(turns))
	for i, turn := range turns {
		assert.Equal(t, turn.role, history[i].Role, "message %d role", i)
		assert.Equal(t, turn.content, history[i].Content, "message %d content", i)
	}

	updated, err := s.GetConversation(ctx, lead.ID)
	require.NoError(t, err)
	assert.NotNil(t, updated.LastMessageAt)
	assert.Zero(t, updated.MessageCount, "AppendMessage must not touch message_count")
}

func testRecordTurn(t *testing.T, s storage.Store) {
	ctx := context.Background()
	lead := addLead(t, s, "turner")
	conv, err := s.GetConversation(ctx, lead.ID)
	require.NoError(t, err)

	opening, score, err := s.RecordTurn(ctx, storage.Turn{
		LeadID:         lead.ID,
		ConversationID: conv.ID,
		Role:           models.RoleBot,
		Content:        "Assalomu alaykum!",
		CountMessage:   true,
		State:          models.StateFirstSent,
		Status:         models.LeadContacted,
	})
	require.NoError(t, err)
	assert.NotZero(t, opening.ID)
	assert.Equal(t, models.RoleBot, opening.Role)
	assert.Zero(t, score)

	_, score, err = s.RecordTurn(ctx, storage.Turn{
		LeadID:         lead.ID,
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        "narxi qancha?",
		ScoreDelta:     3,
		State:          models.StateQualifying,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, score)

	got, err := s.GetLeadByHandle(ctx, "turner")
	require.NoError(t, err)
	assert.Equal(t, models.LeadContacted, got.Status, "zero Status keeps the current one")
	assert.Equal(t, 3, got.ConfidenceScore)

	updated, err := s.GetConversation(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateQualifying, updated.State)
	assert.Equal(t, 1, updated.MessageCount, "only counted turns bump message_count")
	assert.NotNil(t, updated.LastMessageAt)

	history, err := s.History(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "narxi qancha?", history[1].Content)

	_, _, err = s.RecordTurn(ctx, storage.Turn{LeadID: lead.ID, ConversationID: conv.ID, Content: "no role"})
	assert.True(t, storage.IsStoreError(err))
}

func testRecordTurnMismatchStoresNothing(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := addLead(t, s, "owner")
	b := addLead(t, s, "stranger")
	conv, err := s.GetConversation(ctx, a.ID)
	require.NoError(t, err)

	_, _, err = s.RecordTurn(ctx, storage.Turn{
		LeadID:         b.ID,
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        "salom",
		ScoreDelta:     5,
	})
	assert.True(t, errors.Is(err, storage.ErrNotFound), "RecordTurn: %v", err)

	history, err := s.History(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
	got, err := s.GetLeadByHandle(ctx, "stranger")
	require.NoError(t, err)
	assert.Zero(t, got.ConfidenceScore)
}

func testTransition(t *testing.T, s storage.Store) {
	ctx := context.Background()
	lead := addLead(t, s, "mover")

	require.NoError(t, s.Transition(ctx, lead.ID, models.StateExited, models.LeadExited))
	got, err := s.GetLeadByHandle(ctx, "mover")
	require.NoError(t, err)
	assert.Equal(t, models.LeadExited, got.Status)
	conv, err := s.GetConversation(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateExited, conv.State)

	err = s.Transition(ctx, 424242, models.StateConverted, models.LeadConverted)
	assert.True(t, errors.Is(err, storage.ErrNotFound), "Transition: %v", err)
	assert.True(t, storage.IsStoreError(s.Transition(ctx, lead.ID, 0, models.LeadExited)))
}

func testBotStateSeeded(t *testing.T, s storage.Store) {
	st, err := s.BotState(context.Background())
	require.NoError(t, err)
	assert.Nil(t, st.PausedUntil)
	assert.Zero(t, st.DMsSentToday)
	assert.Empty(t, st.LastDMDate)
	assert.Empty(t, st.AccountCreatedDate)
	assert.Zero(t, st.ConsecutiveRejections)
}

func testDMCountRollsOver(t *testing.T, s storage.Store) {
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		n, err := s.IncrementDMCount(ctx, "2026-03-01")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	n, err := s.IncrementDMCount(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "first send on a new day resets the counter")

	st, err := s.BotState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.DMsSentToday)
	assert.Equal(t, "2026-03-02", st.LastDMDate)
}

func testPauseAndRejections(t *testing.T, s storage.Store) {
	ctx := context.Background()
	until := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.SetPausedUntil(ctx, &until))
	st, err := s.BotState(ctx)
	require.NoError(t, err)
	require.NotNil(t, st.PausedUntil)
	assert.True(t, until.Equal(*st.PausedUntil), "paused_until = %v, want %v", st.PausedUntil, until)

	require.NoError(t, s.SetPausedUntil(ctx, nil))
	st, err = s.BotState(ctx)
	require.NoError(t, err)
	assert.Nil(t, st.PausedUntil)

	n, err := s.IncrementBotRejections(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.IncrementBotRejections(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, s.ResetBotRejections(ctx))
	st, err = s.BotState(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.ConsecutiveRejections)
}

func testAccountDateAndSession(t *testing.T, s storage.Store) {
	ctx := context.Background()

	require.NoError(t, s.SetAccountCreatedDate(ctx, "2026-01-15"))
	assert.Error(t, s.SetAccountCreatedDate(ctx, "15/01/2026"))
	require.NoError(t, s.SavePlatformSession(ctx, `{"cookies":[]}`))

	st, err := s.BotState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-15", st.AccountCreatedDate)
	assert.Equal(t, `{"cookies":[]}`, st.PlatformSession)
}

func testConcurrentScoreUpdates(t *testing.T, s storage.Store) {
	ctx := context.Background()
	lead := addLead(t, s, "busy")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AddLeadScore(ctx, lead.ID, 1); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetLeadByHandle(ctx, "busy")
	require.NoError(t, err)
	assert.Equal(t, workers, got.ConfidenceScore)
}
