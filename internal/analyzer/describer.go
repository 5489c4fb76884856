package analyzer

import "context"

// DescribeRequest is a single image description call. ImagePath points at the
// JPEG on disk and ImageDataURL holds the same bytes as a base64 data URL, so
// describers can use whichever form their API accepts.
type DescribeRequest struct {
	SystemPrompt string
	Instruction  string
	ImagePath    string
	ImageDataURL string
}

// Describer turns an image and an instruction into text.
type Describer interface {
	Describe(ctx context.Context, req DescribeRequest) (string, error)
}
