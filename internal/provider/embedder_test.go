package provider

import "testing"

func TestVertexEmbedder_EndpointURL(t *testing.T) {
	global := &VertexEmbedder{project: "proj", location: "global", model: "text-embedding-004"}
	want := "https://aiplatform.googleapis.com/v1/projects/proj/locations/global/publishers/google/models/text-embedding-004:predict"
	if got := global.endpointURL(); got != want {
		t.Errorf("endpointURL() = %q, want %q", got, want)
	}

	regional := &VertexEmbedder{project: "proj", location: "us-central1", model: "text-embedding-004"}
	want = "https://us-central1-aiplatform.googleapis.com/v1/projects/proj/locations/us-central1/publishers/google/models/text-embedding-004:predict"
	if got := regional.endpointURL(); got != want {
		t.Errorf("endpointURL() = %q, want %q", got, want)
	}
}
