// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package llm calls a language model to draft unit tests when no parameter spreadsheet is
// available. The model is behind the ModelCaller interface; CachedCaller adds an injected
// response cache and retries on top of any ModelCaller.
package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"
	"k8s.io/klog/v2"
)

// DefaultSystemMessage is used when the caller gives no system message.
const DefaultSystemMessage = "You are an expert C++ programmer and test engineer. " +
	"Write a complete unit test (UT) for the operator class in the code provided. " +
	"Output only the UT code, without any explanation."

// DefaultModel is the GenAI model used when none is given.
const DefaultModel = "gemini-2.5-flash"

// DefaultMaxOutputTokens limits the size of a reply.
const DefaultMaxOutputTokens = 65536

// ModelCaller generates text from a prompt.
type ModelCaller interface {
	// Call returns the model reply to prompt, using the system message and temperature given.
	Call(ctx context.Context, prompt, system string, temperature float64) (string, error)
}

// CallerFunc adapts a function to a ModelCaller.
type CallerFunc func(ctx context.Context, prompt, system string, temperature float64) (string, error)

// Call implements ModelCaller.
func (fn CallerFunc) Call(ctx context.Context, prompt, system string, temperature float64) (string, error) {
	return fn(ctx, prompt, system, temperature)
}

// GenAICaller is a ModelCaller using Google's GenAI API.
type GenAICaller struct {
	client          *genai.Client
	model           string
	maxOutputTokens int32
}

var _ ModelCaller = (*GenAICaller)(nil)

// NewGenAICaller creates a GenAICaller. An empty model selects DefaultModel.
func NewGenAICaller(ctx context.Context, apiKey, model string) (*GenAICaller, error) {
	if apiKey == "" {
		return nil, errors.New("GenAI API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GenAI client")
	}
	return &GenAICaller{client: client, model: model, maxOutputTokens: DefaultMaxOutputTokens}, nil
}

// Model returns the name of the model called.
func (c *GenAICaller) Model() string {
	return c.model
}

// WithMaxOutputTokens sets the limit of tokens of a reply. It returns itself.
func (c *GenAICaller) WithMaxOutputTokens(n int) *GenAICaller {
	c.maxOutputTokens = int32(n)
	return c
}

// Call implements ModelCaller.
func (c *GenAICaller) Call(ctx context.Context, prompt, system string, temperature float64) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: c.maxOutputTokens,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	klog.V(1).Infof("calling %s with a prompt of %d characters", c.model, len(prompt))
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", errors.Wrapf(err, "GenAI model %s failed", c.model)
	}
	return strings.TrimSpace(resp.Text()), nil
}
