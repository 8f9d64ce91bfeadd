package dto

type AskResponse struct {
	Answer string `json:"answer"`
}
