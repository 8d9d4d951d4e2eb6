package ai

import (
	"context"
	"encoding/base64"
	"fmt"
)

// DescribeImage sends the image to a vision-capable chat model as a base64
// data URL and returns the model's textual reading of it (visible text first,
// then a short description).
func (c *Client) DescribeImage(ctx context.Context, model, mimeType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("image data is empty")
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
	reqBody := map[string]interface{}{
		"model": model,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type": "text",
						"text": "Transcribe any text visible in this image. Then describe the image content in one short paragraph.",
					},
					{
						"type":      "image_url",
						"image_url": map[string]interface{}{"url": dataURL},
					},
				},
			},
		},
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.postJSON(ctx, "/chat/completions", reqBody, &parsed); err != nil {
		return "", fmt.Errorf("vision request failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty vision choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
