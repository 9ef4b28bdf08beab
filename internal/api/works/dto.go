package works

type DOIResponse struct {
	ID  string  `json:"id"`
	DOI *string `json:"doi"`
}

type PrevalidateResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}
