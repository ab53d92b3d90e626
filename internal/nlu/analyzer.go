package nlu

import (
	"context"
	"encoding/json"
	"fmt"

	"poagent/internal/logging"
)

// systemPromptTemplate steers the model toward step-relevant entities.
// The %s is the current dialogue step label.
const systemPromptTemplate = `You are the NLU engine for a Purchase Order creation agent.
The current state of the conversation is: %s.

Your job is to extract relevant entities from the user's input to help move the state forward.

OUTPUT FORMAT: Return ONLY valid JSON.

Possible Entities based on state context:
- If expecting PO Type: extract 'po_type_category' (Independent/PR) and 'po_sub_type' (Regular Purchase, Service, etc.)
- If expecting Supplier: extract 'supplier_name' or 'search_query'.
- If expecting Org Details: extract 'purchase_org', 'plant', 'purchase_group'.
- If expecting Commercials: extract 'payment_terms', 'incoterms', 'project', 'remarks'.
- If expecting Line Item: extract 'material_name', 'service_name', 'quantity', 'price', 'delivery_date', 'tax_code'.

Example Input: "I want to buy 50 laptops from Dell"
Example Output: {"intent": "create_po", "entities": {"supplier_name": "Dell", "material_name": "laptops", "quantity": 50}}

Example Input: "Regular Purchase please"
Example Output: {"intent": "select_po_type", "entities": {"po_sub_type": "Regular Purchase"}}

If the user wants to enable a flag like "yes it is pr based", return boolean flags e.g. "is_pr_based": true.`

// PromptAnalyzer implements Analyzer on top of any completion Client.
type PromptAnalyzer struct {
	client Client
	log    *logging.Logger
}

// NewPromptAnalyzer creates an analyzer backed by the given client.
func NewPromptAnalyzer(client Client) *PromptAnalyzer {
	return &PromptAnalyzer{
		client: client,
		log:    logging.Get(logging.CategoryNLU),
	}
}

// Analyze sends the utterance to the model and parses the structured
// entity JSON out of the completion. Malformed or missing JSON yields an
// error; callers treat any error as an empty entity map.
func (a *PromptAnalyzer) Analyze(ctx context.Context, text, stepLabel string) (Result, error) {
	system := fmt.Sprintf(systemPromptTemplate, stepLabel)

	completion, err := a.client.CompleteWithSystem(ctx, system, text)
	if err != nil {
		a.log.Warn("completion failed at step %s: %v", stepLabel, err)
		return Result{}, fmt.Errorf("nlu completion failed: %w", err)
	}

	raw, ok := ExtractJSON(completion)
	if !ok {
		a.log.Warn("no JSON object in completion at step %s", stepLabel)
		return Result{}, fmt.Errorf("no JSON object in completion")
	}

	var parsed struct {
		Intent   string   `json:"intent"`
		Entities Entities `json:"entities"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Result{}, fmt.Errorf("failed to parse entity JSON: %w", err)
	}
	if parsed.Entities == nil {
		parsed.Entities = Entities{}
	}
	a.log.Debug("step %s -> intent=%q entities=%d", stepLabel, parsed.Intent, len(parsed.Entities))
	return Result{Intent: parsed.Intent, Entities: parsed.Entities}, nil
}
