// Package gemini implements the provider endpoint for the Gemini
// generateContent API.
//
// Prompts are translated into contents/parts with a role mapping of
// user→user, assistant→model and everything else→user. Function calls
// become functionCall parts and their outputs functionResponse parts, named
// through the call_id lookup of the same prompt.
//
// The endpoint calls models/{model}:generateContent in one round trip by
// default and replays the answer through the streaming state machine, so
// consumers always see the same event contract. With Streaming enabled it
// calls :streamGenerateContent?alt=sse and parses events as they arrive.
package gemini
