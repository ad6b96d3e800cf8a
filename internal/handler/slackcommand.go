package handler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/veritas-legal/clausecore/internal/model"
)

// SlackCommandDeps bundles the dependencies of the slash-command handler.
type SlackCommandDeps struct {
	Orchestrator  Orchestrator
	DefaultSource string
	HTTPClient    *http.Client
}

// slackAck is the acknowledgement payload returned within 3s, per §6.6.
type slackAck struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

// slackFollowup is the asynchronous answer POSTed to response_url.
type slackFollowup struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

// SlackCommand handles POST /slack/command. It must be mounted behind
// middleware.VerifySignature. The question is answered asynchronously:
// the caller gets an immediate acknowledgement, and the real answer is
// POSTed to response_url once the pipeline completes.
func SlackCommand(deps SlackCommandDeps) http.HandlerFunc {
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(slackAck{ResponseType: "ephemeral", Text: "could not parse request"})
			return
		}

		question := r.PostForm.Get("text")
		userID := r.PostForm.Get("user_id")
		responseURL := r.PostForm.Get("response_url")

		slog.Info("slack command received",
			"user_id_hash", hashUserID(userID),
			"question_len", len(question),
		)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(slackAck{ResponseType: "ephemeral", Text: "Looking that up…"})

		if question == "" || responseURL == "" {
			return
		}

		source := deps.DefaultSource
		go answerAndRespond(deps.Orchestrator, client, question, source, responseURL)
	}
}

func answerAndRespond(orchestrator Orchestrator, client *http.Client, question, source, responseURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := orchestrator.Run(ctx, question, []string{source}, model.SearchModeHybrid)
	text := ""
	switch {
	case err != nil:
		slog.Error("slack command pipeline failed", "error", err)
		text = "Something went wrong answering that question."
	case result != nil:
		text = result.Answer
	default:
		text = "No answer was produced."
	}

	payload, err := json.Marshal(slackFollowup{ResponseType: "ephemeral", Text: text})
	if err != nil {
		slog.Error("slack command marshal follow-up failed", "error", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, responseURL, bytes.NewReader(payload))
	if err != nil {
		slog.Error("slack command build follow-up request failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		slog.Error("slack command follow-up delivery failed", "error", err)
		return
	}
	defer resp.Body.Close()
}

// hashUserID hashes the Slack user ID so the compliance audit trail never
// stores the raw platform identity, per §6.6's opaque-identifier rule.
func hashUserID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}
