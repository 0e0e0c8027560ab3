// Package wire implements the self-describing job payload format shared
// with the cross-language implementation this queue interoperates with
// (spec.md §6.2). Every process that shares the database must agree on the
// meaning of every field, so this package deliberately has no
// project-specific shortcuts: field names and tag strings are the wire
// contract, not an internal convenience.
package wire

import (
	"encoding/json"
	"fmt"
)

// Payload is the JSON document stored in good_jobs.payload.
type Payload struct {
	JobClass             string     `json:"job_class"`
	JobID                string     `json:"job_id"`
	QueueName             string     `json:"queue_name"`
	Priority              int32      `json:"priority"`
	Arguments             []Argument `json:"arguments"`
	Executions            int32      `json:"executions"`
	Locale                string     `json:"locale,omitempty"`
	Timezone              string     `json:"timezone,omitempty"`
	ConcurrencyKey        string     `json:"good_job_concurrency_key,omitempty"`
	Labels                []string   `json:"good_job_labels,omitempty"`
	Notify                *bool      `json:"good_job_notify,omitempty"`
}

// Encode marshals a Payload to the canonical wire bytes.
func Encode(p *Payload) ([]byte, error) {
	raw := struct {
		JobClass       string            `json:"job_class"`
		JobID          string            `json:"job_id"`
		QueueName      string            `json:"queue_name"`
		Priority       int32             `json:"priority"`
		Arguments      []json.RawMessage `json:"arguments"`
		Executions     int32             `json:"executions"`
		Locale         string            `json:"locale,omitempty"`
		Timezone       string            `json:"timezone,omitempty"`
		ConcurrencyKey string            `json:"good_job_concurrency_key,omitempty"`
		Labels         []string          `json:"good_job_labels,omitempty"`
		Notify         *bool             `json:"good_job_notify,omitempty"`
	}{
		JobClass:       p.JobClass,
		JobID:          p.JobID,
		QueueName:      p.QueueName,
		Priority:       p.Priority,
		Executions:     p.Executions,
		Locale:         p.Locale,
		Timezone:       p.Timezone,
		ConcurrencyKey: p.ConcurrencyKey,
		Labels:         p.Labels,
		Notify:         p.Notify,
	}
	for _, a := range p.Arguments {
		b, err := EncodeArgument(a)
		if err != nil {
			return nil, fmt.Errorf("encode argument: %w", err)
		}
		raw.Arguments = append(raw.Arguments, b)
	}
	return json.Marshal(raw)
}

// Decode unmarshals wire bytes into a Payload, resolving every tagged
// argument object into its concrete Argument type.
func Decode(data []byte) (*Payload, error) {
	var raw struct {
		JobClass       string            `json:"job_class"`
		JobID          string            `json:"job_id"`
		QueueName      string            `json:"queue_name"`
		Priority       int32             `json:"priority"`
		Arguments      []json.RawMessage `json:"arguments"`
		Executions     int32             `json:"executions"`
		Locale         string            `json:"locale"`
		Timezone       string            `json:"timezone"`
		ConcurrencyKey string            `json:"good_job_concurrency_key"`
		Labels         []string          `json:"good_job_labels"`
		Notify         *bool             `json:"good_job_notify"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	p := &Payload{
		JobClass:       raw.JobClass,
		JobID:          raw.JobID,
		QueueName:      raw.QueueName,
		Priority:       raw.Priority,
		Executions:     raw.Executions,
		Locale:         raw.Locale,
		Timezone:       raw.Timezone,
		ConcurrencyKey: raw.ConcurrencyKey,
		Labels:         raw.Labels,
		Notify:         raw.Notify,
	}
	for _, rm := range raw.Arguments {
		arg, err := DecodeArgument(rm)
		if err != nil {
			return nil, fmt.Errorf("decode argument: %w", err)
		}
		p.Arguments = append(p.Arguments, arg)
	}
	return p, nil
}

// WithExecutions returns a shallow copy of p with its executions counter
// set to n (the caller re-encodes it), mirroring spec invariant 3 — the wire
// payload's executions field must equal the column after every successful
// write, so the two are always updated together.
func (p *Payload) WithExecutions(n int32) *Payload {
	cp := *p
	cp.Executions = n
	return &cp
}
