package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tatami-systems/tatami/pkg/logger"
)

// Run executes one complete simulated match.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	if config.MatchID == "" {
		config.MatchID = "sim-" + uuid.NewString()
	}

	log := logger.Get().Named("simulator")
	log.Info(ctx, "starting match simulation",
		logger.String("baseURL", config.BaseURL),
		logger.String("matchID", config.MatchID),
		logger.Int("rounds", config.Rounds),
		logger.Int("assessors", config.Assessors),
		logger.Int64("seed", seed),
	)

	client := newHTTPClient(config.Timeout)
	sim := &simulation{
		config: config,
		client: client,
		rng:    rng,
		stats:  stats,
		log:    log,
	}

	if err := sim.checkHealth(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}
	if err := sim.admitMatch(ctx); err != nil {
		return fmt.Errorf("admission failed: %w", err)
	}
	if err := sim.playMatch(ctx); err != nil {
		return fmt.Errorf("match play failed: %w", err)
	}
	if err := sim.verifyScoreboard(ctx); err != nil {
		return fmt.Errorf("scoreboard verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	sim.displayFinalStats(ctx)

	log.Info(ctx, "simulation completed successfully")
	return nil
}

// simulation carries the mutable state of one simulated match.
type simulation struct {
	config *Config
	client *httpClient
	rng    *rand.Rand
	stats  *Stats
	log    logger.Logger

	// Local fold of every accepted score, checked against the engine's
	// scoreboard at the end.
	expectedRed  int
	expectedBlue int
}

func (s *simulation) checkHealth(ctx context.Context) error {
	s.log.Info(ctx, "checking service health")
	status, err := s.client.get(s.config.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("unexpected health status %d", status)
	}
	return nil
}

func (s *simulation) assessorID(i int) string {
	return fmt.Sprintf("%s-assessor-%d", s.config.MatchID, i)
}

func (s *simulation) judgeID() string {
	return s.config.MatchID + "-judge"
}

func (s *simulation) admitMatch(ctx context.Context) error {
	officials := make([]map[string]any, 0, s.config.Assessors+1)
	for i := 0; i < s.config.Assessors; i++ {
		officials = append(officials, map[string]any{
			"user_id":  s.assessorID(i),
			"position": i + 1,
			"role":     "ASSESSOR",
		})
	}
	officials = append(officials, map[string]any{
		"user_id":  s.judgeID(),
		"position": s.config.Assessors + 1,
		"role":     "JUDGE",
	})

	body := map[string]any{
		"id":              s.config.MatchID,
		"competition_id":  "sim-competition",
		"weight_class_id": fmt.Sprintf("sim-%dkg", 60+s.rng.Intn(4)*7),
		"red":             map[string]any{"id": "sim-red", "name": "Red Simulant", "unit": "Sim Unit A", "bib": "1"},
		"blue":            map[string]any{"id": "sim-blue", "name": "Blue Simulant", "unit": "Sim Unit B", "bib": "2"},
		"rules": map[string]any{
			"total_rounds":           s.config.Rounds,
			"round_duration_seconds": s.config.RoundSeconds,
			"score_values":           []int{1, 2},
		},
		"officials": officials,
	}

	status, err := s.client.post(s.config.BaseURL+"/matches", body, nil)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("unexpected admission status %d", status)
	}
	s.log.Info(ctx, "match admitted", logger.String("matchID", s.config.MatchID))
	return nil
}

func (s *simulation) control(ctx context.Context, action string) (*controlResult, error) {
	var out controlResult
	url := fmt.Sprintf("%s/matches/%s/control", s.config.BaseURL, s.config.MatchID)
	status, err := s.client.post(url, map[string]string{"action": action}, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", action, status)
	}
	return &out, nil
}

// playMatch drives the match round by round until the engine reports it
// ended. Extra tie-breaker rounds opened by the continuation policy are
// played the same way as scheduled rounds.
func (s *simulation) playMatch(ctx context.Context) error {
	if _, err := s.control(ctx, "START"); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.playRound(ctx); err != nil {
			return err
		}
		s.stats.RoundsPlayed++

		out, err := s.control(ctx, "END_ROUND")
		if err != nil {
			return err
		}
		if out.Ended {
			s.stats.UnresolvedTie = out.UnresolvedTie
			if out.UnresolvedTie {
				s.log.Info(ctx, "match ended in an unresolved tie",
					logger.String("tieBreakRule", out.TieBreakRule))
			}
			return nil
		}
	}
}

// playRound performs the configured number of scoring exchanges plus the
// occasional judge call, with a short pause/resume once per round.
func (s *simulation) playRound(ctx context.Context) error {
	for i := 0; i < s.config.Exchanges; i++ {
		corner := "RED"
		if s.rng.Intn(2) == 1 {
			corner = "BLUE"
		}
		if err := s.runExchange(ctx, corner); err != nil {
			return err
		}

		// A referee pause lands mid-round roughly once per round.
		if i == s.config.Exchanges/2 {
			if _, err := s.control(ctx, "PAUSE"); err != nil {
				return err
			}
			if _, err := s.control(ctx, "RESUME"); err != nil {
				return err
			}
		}
	}

	// The judge occasionally issues a warning.
	if s.rng.Intn(3) == 0 {
		corner := "RED"
		if s.rng.Intn(2) == 1 {
			corner = "BLUE"
		}
		url := fmt.Sprintf("%s/matches/%s/events", s.config.BaseURL, s.config.MatchID)
		status, err := s.client.post(url, map[string]any{
			"judge_id": s.judgeID(),
			"corner":   corner,
			"kind":     "WARNING",
		}, nil)
		if err != nil {
			return err
		}
		if status != http.StatusCreated {
			return fmt.Errorf("judge event returned status %d", status)
		}
		s.stats.JudgeEvents++
	}
	return nil
}

// runExchange has assessors vote one by one until the window resolves or
// the whole panel has voted. Most exchanges agree on a value; a minority
// split and score nothing, which is correct engine behavior.
func (s *simulation) runExchange(ctx context.Context, corner string) error {
	agreed := 1 + s.rng.Intn(2) // the value most of the panel saw
	url := fmt.Sprintf("%s/matches/%s/votes", s.config.BaseURL, s.config.MatchID)

	order := s.rng.Perm(s.config.Assessors)
	for _, idx := range order {
		score := agreed
		if s.rng.Intn(5) == 0 { // dissenting assessor
			score = 3 - agreed
		}

		var res voteResult
		status, err := s.client.post(url, map[string]any{
			"assessor_id": s.assessorID(idx),
			"corner":      corner,
			"score":       score,
		}, &res)
		if err != nil {
			return err
		}
		s.stats.VotesCast++

		switch status {
		case http.StatusOK:
			if res.ScoreAccepted {
				s.stats.ScoresAccepted++
				value := acceptedValue(&res)
				if s.config.Verbose {
					s.log.Debug(ctx, "score accepted",
						logger.Int("round", res.Round),
						logger.String("corner", corner),
						logger.Int("value", value),
					)
				}
				if corner == "RED" {
					s.expectedRed += value
				} else {
					s.expectedBlue += value
				}
				return s.clearWindow(ctx, corner)
			}
		case http.StatusConflict:
			// Window already resolved by a concurrent vote; done.
			s.stats.VotesRejected++
			return nil
		default:
			return fmt.Errorf("vote returned status %d", status)
		}
	}
	// No consensus; clear the split window so the next exchange starts fresh.
	return s.clearWindow(ctx, corner)
}

// acceptedValue recovers the scored value from the appended event's kind.
func acceptedValue(res *voteResult) int {
	if res.Event == nil {
		return 0
	}
	switch res.Event.Kind {
	case "SCORE_PLUS_1":
		return 1
	case "SCORE_PLUS_2":
		return 2
	case "SCORE_MINUS_1":
		return -1
	}
	return 0
}

func (s *simulation) clearWindow(ctx context.Context, corner string) error {
	url := fmt.Sprintf("%s/matches/%s/votes/clear", s.config.BaseURL, s.config.MatchID)
	status, err := s.client.post(url, map[string]string{"corner": corner}, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusConflict {
		return fmt.Errorf("clear returned status %d", status)
	}
	return nil
}

func (s *simulation) verifyScoreboard(ctx context.Context) error {
	var board scoreboard
	url := fmt.Sprintf("%s/matches/%s/scoreboard", s.config.BaseURL, s.config.MatchID)
	status, err := s.client.get(url, &board)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("scoreboard returned status %d", status)
	}

	s.stats.RedScore = board.Red.Score
	s.stats.BlueScore = board.Blue.Score

	if board.Status != "ENDED" {
		return fmt.Errorf("expected ENDED, scoreboard says %s", board.Status)
	}
	if board.Red.Score != s.expectedRed || board.Blue.Score != s.expectedBlue {
		return fmt.Errorf("score mismatch: engine %d-%d, simulator %d-%d",
			board.Red.Score, board.Blue.Score, s.expectedRed, s.expectedBlue)
	}

	s.log.Info(ctx, "scoreboard verified",
		logger.Int("red", board.Red.Score),
		logger.Int("blue", board.Blue.Score),
	)
	return nil
}

func (s *simulation) displayFinalStats(ctx context.Context) {
	s.log.Info(ctx, "simulation statistics",
		logger.Int("roundsPlayed", s.stats.RoundsPlayed),
		logger.Int("votesCast", s.stats.VotesCast),
		logger.Int("votesRejected", s.stats.VotesRejected),
		logger.Int("scoresAccepted", s.stats.ScoresAccepted),
		logger.Int("judgeEvents", s.stats.JudgeEvents),
		logger.Int("redScore", s.stats.RedScore),
		logger.Int("blueScore", s.stats.BlueScore),
		logger.Bool("unresolvedTie", s.stats.UnresolvedTie),
		logger.Duration("duration", s.stats.Duration),
	)
}
