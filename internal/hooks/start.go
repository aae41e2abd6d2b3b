package hooks

import (
	"encoding/json"
	"io"
	"net/url"
)

func handleSessionStart(client *Client, input *HookInput, stdout io.Writer) {
	params := url.Values{}
	if input.Prompt != "" {
		params.Set("context", input.Prompt)
	}

	data, err := client.Get("/api/context?" + params.Encode())
	if err != nil {
		// Degrade gracefully: return empty context
		WriteSessionStartOutput(stdout, "")
		return
	}

	var resp struct {
		Context string `json:"context"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		WriteSessionStartOutput(stdout, "")
		return
	}

	WriteSessionStartOutput(stdout, resp.Context)
}
