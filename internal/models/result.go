package models

type EvaluateRequest struct {
	Force *bool `json:"force"`
}

type BulkEvaluateRequest struct {
	CandidateIDs []string `json:"candidate_ids"`
	Force        *bool    `json:"force"`
}

type GenerateQuestionsRequest struct {
	OfferTitle       string `json:"offer_title"`
	OfferDescription string `json:"offer_description"`
	Requirements     string `json:"requirements"`
	Difficulty       string `json:"difficulty"`
	Count            int    `json:"count"`
	BehaviouralCount *int   `json:"behavioural_count,omitempty"`
	TechnicalCount   *int   `json:"technical_count,omitempty"`
	CampaignID       string `json:"campaign_id,omitempty"`
}

type EnqueueResponse struct {
	AnswerID string `json:"answer_id"`
	Status   string `json:"status"`
}

type EvaluationResponse struct {
	AnswerID     string      `json:"answer_id"`
	Status       string      `json:"status"`
	Evaluation   *Evaluation `json:"evaluation,omitempty"`
	ErrorMessage *string     `json:"error_message,omitempty"`
}
