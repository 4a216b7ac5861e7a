package http

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"gamification-service/internal/app"
	"gamification-service/internal/domain"
	"gamification-service/internal/infra/community"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TopReader serves a precomputed leaderboard (the Redis store) instead of ranking accounts per request.
type TopReader interface {
	Top(ctx context.Context, limit int) (domain.Leaderboard, error)
}

// RewardSummarizer fetches a member's rewards from the community platform.
type RewardSummarizer interface {
	RewardSummary(ctx context.Context, userID string) (community.RewardSummary, error)
}

// API exposes the ledger, boards and quizzes over REST.
type API struct {
	Ledger       *app.PointsLedger
	Actions      *app.ActionCatalog
	Leaderboards *app.LeaderboardService
	Challenges   *app.ChallengeService
	Catalog      *app.QuizCatalog
	Live         *app.LiveQuizService
	Now          func() time.Time

	// Optional.
	CommunityBoard TopReader
	Community      RewardSummarizer
}

const defaultBoardLimit = 20

// Register mounts every route on router.
func (a *API) Register(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/accounts/{userId}", a.initAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{userId}", a.getAccount).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{userId}/awards", a.award).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{userId}/redemptions", a.redeem).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{userId}/evaluate", a.reevaluate).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{userId}/community-rewards", a.communityRewards).Methods(http.MethodGet)

	api.HandleFunc("/actions", a.listActions).Methods(http.MethodGet)
	api.HandleFunc("/actions/{actionId}", a.upsertAction).Methods(http.MethodPut)
	api.HandleFunc("/actions/{actionId}/enabled", a.setActionEnabled).Methods(http.MethodPut)

	api.HandleFunc("/leaderboards/community", a.communityBoard).Methods(http.MethodGet)
	api.HandleFunc("/leaderboards/weekly", a.weeklyBoard).Methods(http.MethodGet)

	api.HandleFunc("/quizzes/weekly", a.weeklyQuiz).Methods(http.MethodGet)
	api.HandleFunc("/quizzes/weekly/submissions", a.submitWeeklyQuiz).Methods(http.MethodPost)
	api.HandleFunc("/brain-teasers/today", a.brainTeaser).Methods(http.MethodGet)
	api.HandleFunc("/brain-teasers/today/answers", a.solveBrainTeaser).Methods(http.MethodPost)

	api.HandleFunc("/live/{eventId}", a.liveStatus).Methods(http.MethodGet)
	api.HandleFunc("/live/{eventId}/leaderboard", a.liveLeaderboard).Methods(http.MethodGet)
	api.HandleFunc("/live/{eventId}/finalize", a.finalizeLive).Methods(http.MethodPost)
}

func (a *API) initAccount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}
	account, err := a.Ledger.Initialize(r.Context(), mux.Vars(r)["userId"], body.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := a.Ledger.GetAccount(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (a *API) award(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ActionID string `json:"actionId"`
		Notes    string `json:"notes"`
	}
	if !decode(w, r, &body) {
		return
	}
	account, err := a.Ledger.Award(r.Context(), mux.Vars(r)["userId"], body.ActionID, body.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (a *API) redeem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Points int `json:"points"`
	}
	if !decode(w, r, &body) {
		return
	}
	account, err := a.Ledger.Redeem(r.Context(), mux.Vars(r)["userId"], body.Points)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (a *API) reevaluate(w http.ResponseWriter, r *http.Request) {
	account, err := a.Ledger.Reevaluate(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (a *API) communityRewards(w http.ResponseWriter, r *http.Request) {
	if a.Community == nil {
		http.Error(w, "community platform not configured", http.StatusNotImplemented)
		return
	}
	summary, err := a.Community.RewardSummary(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		zap.L().Warn("community reward summary failed", zap.Error(err))
		http.Error(w, "community platform unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) listActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Actions.List())
}

func (a *API) upsertAction(w http.ResponseWriter, r *http.Request) {
	var action domain.RewardAction
	if !decode(w, r, &action) {
		return
	}
	action.ID = mux.Vars(r)["actionId"]
	if err := a.Actions.Upsert(action); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (a *API) setActionEnabled(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if !decode(w, r, &body) {
		return
	}
	id := mux.Vars(r)["actionId"]
	if err := a.Actions.SetEnabled(id, body.Enabled); err != nil {
		writeError(w, err)
		return
	}
	action, _ := a.Actions.Get(id)
	writeJSON(w, http.StatusOK, action)
}

func (a *API) communityBoard(w http.ResponseWriter, r *http.Request) {
	limit := limitParam(r)
	var (
		lb  domain.Leaderboard
		err error
	)
	if a.CommunityBoard != nil {
		lb, err = a.CommunityBoard.Top(r.Context(), limit)
	} else {
		lb, err = a.Leaderboards.Community(r.Context(), limit)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (a *API) weeklyBoard(w http.ResponseWriter, r *http.Request) {
	lb, err := a.Leaderboards.Weekly(r.Context(), limitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

type questionSetView struct {
	ID        string                `json:"id"`
	Title     string                `json:"title"`
	Kind      domain.QuizKind       `json:"kind"`
	Questions []domain.QuestionView `json:"questions"`
}

func (a *API) weeklyQuiz(w http.ResponseWriter, r *http.Request) {
	set := a.Catalog.WeeklyQuiz(a.now())
	view := questionSetView{ID: set.ID, Title: set.Title, Kind: set.Kind, Questions: make([]domain.QuestionView, len(set.Questions))}
	for i, q := range set.Questions {
		view.Questions[i] = q.View()
	}
	writeJSON(w, http.StatusOK, view)
}

type rewardOutcome struct {
	RewardError string `json:"rewardError,omitempty"`
}

func (a *API) submitWeeklyQuiz(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID  string         `json:"userId"`
		Answers map[string]int `json:"answers"`
	}
	if !decode(w, r, &body) {
		return
	}
	result, err := a.Challenges.SubmitWeeklyQuiz(r.Context(), body.UserID, body.Answers)
	if err != nil && result.QuizID == "" {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		domain.WeeklyQuizResult
		rewardOutcome
	}{result, outcome(err)})
}

func (a *API) brainTeaser(w http.ResponseWriter, r *http.Request) {
	teaser := a.Catalog.DailyBrainTeaser(a.now())
	writeJSON(w, http.StatusOK, struct {
		ID       string              `json:"id"`
		Hint     string              `json:"hint,omitempty"`
		Question domain.QuestionView `json:"question"`
	}{teaser.ID, teaser.Hint, teaser.Question.View()})
}

func (a *API) solveBrainTeaser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID      string `json:"userId"`
		AnswerIndex int    `json:"answerIndex"`
	}
	if !decode(w, r, &body) {
		return
	}
	result, err := a.Challenges.SolveBrainTeaser(r.Context(), body.UserID, body.AnswerIndex)
	if err != nil && result.TeaserID == "" {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		domain.BrainTeaserResult
		rewardOutcome
	}{result, outcome(err)})
}

func (a *API) liveStatus(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["eventId"]
	status, err := a.Live.Status(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}
	view, idx, ok, err := a.Live.CurrentQuestion(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := struct {
		EventID  string               `json:"eventId"`
		Status   domain.QuizStatus    `json:"status"`
		Index    int                  `json:"questionIndex"`
		Question *domain.QuestionView `json:"question,omitempty"`
	}{EventID: eventID, Status: status, Index: idx}
	if ok {
		resp.Question = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) liveLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := a.Live.Leaderboard(r.Context(), mux.Vars(r)["eventId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (a *API) finalizeLive(w http.ResponseWriter, r *http.Request) {
	podium, err := a.Live.Finalize(r.Context(), mux.Vars(r)["eventId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"podium": podium})
}

func (a *API) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func outcome(err error) rewardOutcome {
	if err == nil {
		return rewardOutcome{}
	}
	return rewardOutcome{RewardError: err.Error()}
}

func limitParam(r *http.Request) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		return n
	}
	return defaultBoardLimit
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var cooldown *domain.CooldownError
	if errors.As(err, &cooldown) {
		seconds := int(math.Ceil(cooldown.Remaining.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": err.Error(), "retryAfterSeconds": seconds})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnknownAction),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrEventNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrQuizNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidAction),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidOption):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrActionDisabled),
		errors.Is(err, domain.ErrMaxOccurrencesReached),
		errors.Is(err, domain.ErrInsufficientPoints),
		errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrJoinNotAllowed),
		errors.Is(err, domain.ErrQuizNotLive),
		errors.Is(err, domain.ErrQuizNotEnded),
		errors.Is(err, domain.ErrQuestionNotOpen),
		errors.Is(err, domain.ErrAlreadyAnswered):
		status = http.StatusConflict
	default:
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
