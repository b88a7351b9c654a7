package domain

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		wantErr bool
	}{
		{"valid", Document{ID: "f.xml_qa_1", Text: "Question: q\nAnswer: a"}, false},
		{"empty id", Document{Text: "body"}, true},
		{"empty text", Document{ID: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.doc)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSkipError_Unwrap(t *testing.T) {
	err := NewSkipError("1_CancerGov_QA/bad.xml", ErrMalformedInput)
	if !errors.Is(err, ErrMalformedInput) {
		t.Error("SkipError should unwrap to ErrMalformedInput")
	}
	if err.Error() == "" {
		t.Error("empty error string")
	}
}
