package models

type GenerateRequest struct {
	Prompt   string        `json:"prompt" example:"a neon city at night"`
	Settings ImageSettings `json:"settings"`
}
