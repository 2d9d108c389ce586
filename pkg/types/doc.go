// Package types defines the shared data model for controlgraph: text chunks
// and passages, extracted entities and their relationships, workflow steps and
// agent results, and the error taxonomy used across the engine.
package types
