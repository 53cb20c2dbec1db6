package model

import "time"

// ScoreEvent is one appended entry of a match's scoring record. Events are
// never updated or deleted; corrections are recorded as new compensating
// events (SCORE_MINUS_1).
type ScoreEvent struct {
	ID      string `json:"id"`
	MatchID string `json:"match_id"`
	Round   int    `json:"round"`

	// TimestampInRound is the elapsed whole seconds into the round at
	// which the event occurred.
	TimestampInRound int       `json:"timestamp_in_round_seconds"`
	Corner           Corner    `json:"corner"`
	Kind             EventKind `json:"kind"`

	// RecordingJudgeID is set when a judge recorded the event directly.
	RecordingJudgeID string `json:"recording_judge_id,omitempty"`

	// AgreeingAssessorIDs is set when the event came out of consensus.
	AgreeingAssessorIDs []string `json:"agreeing_assessor_ids,omitempty"`

	// Seq is the per-match insertion sequence assigned by the ledger.
	Seq       uint64    `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}
