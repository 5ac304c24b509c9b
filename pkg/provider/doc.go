// Package provider defines the LLM provider interface used by the external
// judge and its Anthropic implementation, reached either directly or through
// AWS Bedrock.
package provider
