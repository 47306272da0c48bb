package council

// Stage1Response is one model's independent answer from stage 1.
type Stage1Response struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// Stage2Ranking is one model's peer evaluation from stage 2. Ranking is the
// raw evaluation text written against anonymized labels ("Response A", ...);
// ParsedRanking is the extracted label order, best first.
type Stage2Ranking struct {
	Model         string   `json:"model"`
	Ranking       string   `json:"ranking"`
	ParsedRanking []string `json:"parsed_ranking,omitempty"`
}

// Stage3Response is the chairman's final synthesis from stage 3.
type Stage3Response struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// AggregateRanking is a model's standing across all stage 2 evaluations.
// Lower AverageRank is better.
type AggregateRanking struct {
	Model         string  `json:"model"`
	AverageRank   float64 `json:"average_rank"`
	RankingsCount int     `json:"rankings_count"`
}

// Metadata accompanies the stage 2 result: the label → model
// de-anonymization map and the aggregate ranking list.
type Metadata struct {
	LabelToModel      map[string]string  `json:"label_to_model"`
	AggregateRankings []AggregateRanking `json:"aggregate_rankings"`
}
