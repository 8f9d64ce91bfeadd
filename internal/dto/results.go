package dto

import (
	"aivision/internal/models"
	"aivision/internal/services/results"
)

// DetectResponse mirrors the detection backend's reply.
type DetectResponse struct {
	AnnotatedImage string             `json:"annotatedImage"`
	Detections     []models.Detection `json:"detections"`
}

// ResultsResponse is the user's current workspace.
type ResultsResponse struct {
	Filename       string             `json:"filename"`
	AnnotatedImage string             `json:"annotatedImage"`
	Detections     []models.Detection `json:"detections"`
	Sort           results.SortState  `json:"sort"`
	Count          int                `json:"count"`
}

type SortRequest struct {
	Column results.Column `json:"column"`
}

type SortResponse struct {
	Detections []models.Detection `json:"detections"`
	Sort       results.SortState  `json:"sort"`
}
