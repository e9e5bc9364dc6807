package domain

import (
	"errors"
	"time"
)

// AnalysisType names the kind of AI evaluation performed on a client.
type AnalysisType string

const (
	AnalysisSafety        AnalysisType = "safety"
	AnalysisSentiment     AnalysisType = "sentiment"
	AnalysisFaceDetection AnalysisType = "face_detection"
)

// SafetyScoreWindow is how many recent safety assessments feed the aggregate
// score. Bounding the window lets the score track recent behavior and caps
// the weight of any single stale assessment.
const SafetyScoreWindow = 5

var ErrAssessmentNotFound = errors.New("assessment not found")
var ErrInvalidScore = errors.New("overall score must be between 0 and 10")
var ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")

// AiAssessment is one AI evaluation of a client. Records are append-only;
// only Confidence may be corrected afterwards, by an explicit admin action.
type AiAssessment struct {
	ID               int64        `json:"id" bson:"_id,omitempty"`
	ClientID         int64        `json:"client_id" bson:"client_id"`
	AnalysisType     AnalysisType `json:"analysis_type" bson:"analysis_type"`
	OverallScore     float64      `json:"overall_score" bson:"overall_score"`
	Confidence       float64      `json:"confidence" bson:"confidence"`
	ModelVersion     string       `json:"model_version" bson:"model_version"`
	ProcessingTimeMs int64        `json:"processing_time_ms" bson:"processing_time_ms"`
	CreatedAt        time.Time    `json:"created_at" bson:"created_at"`
}

// FeedsSafetyScore reports whether this assessment participates in the
// client's aiSafetyScore. Other analysis kinds are kept for audit only.
func (a *AiAssessment) FeedsSafetyScore() bool {
	return a.AnalysisType == AnalysisSafety
}
