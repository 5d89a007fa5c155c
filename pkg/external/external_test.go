package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediguard-server/internal/domain"
)

func newLabelClient(t *testing.T, handler http.HandlerFunc) (*DrugLabelClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewDrugLabelClient(domain.DrugLabelConfig{
		BaseURL:   server.URL,
		Timeout:   5 * time.Second,
		RateLimit: 100,
	})
	return client, server
}

func labelResult(fields map[string][]string) string {
	record := map[string]any{}
	for k, v := range fields {
		record[k] = v
	}
	body, _ := json.Marshal(map[string]any{"results": []any{record}})
	return string(body)
}

func TestDrugLabelClient_Lookup(t *testing.T) {
	t.Run("quoted exact phrase wins on the first pass", func(t *testing.T) {
		var queries []string
		client, _ := newLabelClient(t, func(w http.ResponseWriter, r *http.Request) {
			queries = append(queries, r.URL.RawQuery)
			w.Write([]byte(labelResult(map[string][]string{
				"warnings": {"Do not exceed the stated dose."},
			})))
		})

		snippet, err := client.Lookup(context.Background(), "ibuprofen")
		require.NoError(t, err)
		require.NotNil(t, snippet)

		require.Len(t, queries, 1)
		assert.Contains(t, queries[0], "%22ibuprofen%22")
		assert.Contains(t, queries[0], "openfda.brand_name")
		assert.Contains(t, queries[0], "openfda.generic_name")
		assert.Contains(t, queries[0], "limit=1")
	})

	t.Run("falls back to the unquoted pass", func(t *testing.T) {
		var queries []string
		client, _ := newLabelClient(t, func(w http.ResponseWriter, r *http.Request) {
			queries = append(queries, r.URL.RawQuery)
			if strings.Contains(r.URL.RawQuery, "%22") {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(labelResult(map[string][]string{
				"warnings": {"Warning text."},
			})))
		})

		snippet, err := client.Lookup(context.Background(), "advil")
		require.NoError(t, err)
		require.NotNil(t, snippet)
		assert.Len(t, queries, 2)
	})

	t.Run("both passes empty means no evidence, not an error", func(t *testing.T) {
		client, _ := newLabelClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		snippet, err := client.Lookup(context.Background(), "unobtanium")
		assert.NoError(t, err)
		assert.Nil(t, snippet)
	})

	t.Run("server failure on both passes is an error", func(t *testing.T) {
		client, _ := newLabelClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		snippet, err := client.Lookup(context.Background(), "ibuprofen")
		assert.Error(t, err)
		assert.Nil(t, snippet)
	})
}

func TestDrugLabelClient_SnippetAssembly(t *testing.T) {
	t.Run("sections join in fixed order with readable labels", func(t *testing.T) {
		client, _ := newLabelClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(labelResult(map[string][]string{
				"adverse_reactions": {"Nausea.", "second element ignored"},
				"warnings":          {"Stomach bleeding risk."},
				"drug_interactions": {"Avoid with anticoagulants."},
			})))
		})

		snippet, err := client.Lookup(context.Background(), "ibuprofen")
		require.NoError(t, err)
		require.NotNil(t, snippet)

		wantOrder := []string{
			"warnings: Stomach bleeding risk.",
			"drug interactions: Avoid with anticoagulants.",
			"adverse reactions: Nausea.",
		}
		assert.Equal(t, strings.Join(wantOrder, "\n\n"), snippet.CombinedText)
		assert.NotContains(t, snippet.CombinedText, "second element")
	})

	t.Run("description is the fallback", func(t *testing.T) {
		client, _ := newLabelClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(labelResult(map[string][]string{
				"description": {"A nonsteroidal anti-inflammatory drug."},
			})))
		})

		snippet, err := client.Lookup(context.Background(), "ibuprofen")
		require.NoError(t, err)
		require.NotNil(t, snippet)
		assert.Equal(t, "A nonsteroidal anti-inflammatory drug.", snippet.CombinedText)
	})

	t.Run("record with no usable text yields nil", func(t *testing.T) {
		client, _ := newLabelClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(labelResult(map[string][]string{
				"unrelated_field": {"text"},
			})))
		})

		snippet, err := client.Lookup(context.Background(), "ibuprofen")
		assert.NoError(t, err)
		assert.Nil(t, snippet)
	})
}

func newCloudClient(t *testing.T, handler http.HandlerFunc) *CloudModelClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewCloudModelClient(domain.CloudModelConfig{
		BaseURL:     server.URL,
		TextModel:   "text-model",
		VisionModel: "vision-model",
		Timeout:     5 * time.Second,
	})
}

func cloudReply(text string) string {
	body, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
	return string(body)
}

func TestCloudModelClient_GenerateText(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		var gotPath, gotKey string
		var gotBody generateRequest
		client := newCloudClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotKey = r.URL.Query().Get("key")
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.Write([]byte(cloudReply(`{"risk":"caution"}`)))
		})

		text, err := client.GenerateText(context.Background(), "secret", "assess this", 0.2, 350)
		require.NoError(t, err)
		assert.Equal(t, `{"risk":"caution"}`, text)

		assert.Equal(t, "/models/text-model:generateContent", gotPath)
		assert.Equal(t, "secret", gotKey)
		require.Len(t, gotBody.Contents, 1)
		assert.Equal(t, "assess this", gotBody.Contents[0].Parts[0].Text)
		assert.InDelta(t, 0.2, gotBody.GenerationConfig.Temperature, 1e-9)
		assert.Equal(t, 350, gotBody.GenerationConfig.MaxOutputTokens)
	})

	t.Run("empty key rejected before any call", func(t *testing.T) {
		client := newCloudClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		_, err := client.GenerateText(context.Background(), "  ", "prompt", 0.2, 350)
		assert.Error(t, err)
	})

	t.Run("upstream error message surfaced", func(t *testing.T) {
		client := newCloudClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
		})
		_, err := client.GenerateText(context.Background(), "bad", "prompt", 0.2, 350)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API key not valid")
	})

	t.Run("no candidates is an error", func(t *testing.T) {
		client := newCloudClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"candidates":[]}`))
		})
		_, err := client.GenerateText(context.Background(), "key", "prompt", 0.2, 350)
		assert.Error(t, err)
	})
}

func TestCloudModelClient_DetectDrugName(t *testing.T) {
	t.Run("decodes the structured detection", func(t *testing.T) {
		var gotPath string
		var gotBody generateRequest
		client := newCloudClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.Write([]byte(cloudReply(`{"brand":"Advil","generic":"Ibuprofen","candidates":["advil"]}`)))
		})

		detection, err := client.DetectDrugName(context.Background(), "key", "image/png", []byte{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, "Advil", detection.Brand)
		assert.Equal(t, "ibuprofen", detection.BestName())

		assert.Equal(t, "/models/vision-model:generateContent", gotPath)
		require.Len(t, gotBody.Contents, 1)
		require.Len(t, gotBody.Contents[0].Parts, 2)
		require.NotNil(t, gotBody.Contents[0].Parts[1].InlineData)
		assert.Equal(t, "image/png", gotBody.Contents[0].Parts[1].InlineData.MimeType)
		assert.InDelta(t, 0.1, gotBody.GenerationConfig.Temperature, 1e-9)
		assert.Equal(t, 200, gotBody.GenerationConfig.MaxOutputTokens)
	})

	t.Run("unparseable vision reply is an error", func(t *testing.T) {
		client := newCloudClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(cloudReply("I see a box of pills.")))
		})
		_, err := client.DetectDrugName(context.Background(), "key", "image/jpeg", []byte{1})
		assert.Error(t, err)
	})
}
