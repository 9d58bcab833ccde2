package config

type WorkerKeyStruct struct {
	GenerateReportsQueue string
	AIReviewResultsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	GenerateReportsQueue: "generate_reports_queue",
	AIReviewResultsQueue: "ai_review_results_queue",
}
