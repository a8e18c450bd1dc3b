package exchange

import (
	"errors"
	"testing"
)

func TestCloudEventsCodec_RoundTrip(t *testing.T) {
	codec := NewCodec()

	ex := New(FireAndForgetWithFault)
	ex.Role = Responder
	ex.Source = "client"
	ex.Endpoint = "splitter"
	ex.Message.Content = []byte("<orders><order/></orders>")
	ex.Message.Properties["prop"] = "value"
	ex.Message.Attachments["doc.pdf"] = []byte{0x25, 0x50, 0x44, 0x46}
	ex.Fault = NewMessage([]byte("fault"))
	ex.Error = errors.New("boom")
	ex.Status = Error

	data, err := codec.Marshal(ex)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	got, err := codec.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if got.ID != ex.ID || got.Pattern != ex.Pattern || got.Status != ex.Status || got.Role != ex.Role {
		t.Errorf("header mismatch: got %v, want %v", got, ex)
	}
	if got.Source != "client" || got.Endpoint != "splitter" {
		t.Errorf("routing mismatch: source=%q endpoint=%q", got.Source, got.Endpoint)
	}
	if string(got.Message.Content) != string(ex.Message.Content) {
		t.Errorf("content = %q", got.Message.Content)
	}
	if v, _ := got.Message.Properties.String("prop"); v != "value" {
		t.Errorf("property = %q", v)
	}
	if string(got.Message.Attachments["doc.pdf"]) != string(ex.Message.Attachments["doc.pdf"]) {
		t.Errorf("attachment = %v", got.Message.Attachments["doc.pdf"])
	}
	if got.Fault == nil || string(got.Fault.Content) != "fault" {
		t.Errorf("fault = %v", got.Fault)
	}
	if got.Error == nil || got.Error.Error() != "boom" {
		t.Errorf("error = %v", got.Error)
	}
	if got.Response != nil {
		t.Errorf("expected no response, got %v", got.Response)
	}
}

func TestCloudEventsCodec_PartMetaSurvives(t *testing.T) {
	codec := NewCodec()
	ex := New(FireAndForget)
	PartMeta{Count: 4, Index: 1, CorrelationID: "orig"}.Apply(ex.Message.Properties)

	data, err := codec.Marshal(ex)
	if err != nil {
		t.Fatal(err)
	}
	got, err := codec.Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	meta, ok := PartMetaOf(got)
	if !ok || meta.Count != 4 || meta.Index != 1 || meta.CorrelationID != "orig" {
		t.Fatalf("unexpected part meta %+v (ok=%v)", meta, ok)
	}
}

func TestCloudEventsCodec_Errors(t *testing.T) {
	codec := NewCodec()

	if _, err := codec.Marshal(nil); err == nil {
		t.Error("expected error for nil exchange")
	}
	if _, err := codec.Unmarshal([]byte("not json")); err == nil {
		t.Error("expected error for invalid data")
	}

	foreign := []byte(`{"specversion":"1.0","id":"1","source":"x","type":"other.type"}`)
	if _, err := codec.Unmarshal(foreign); err == nil {
		t.Error("expected error for foreign event type")
	}
}
