package provider

import (
	"encoding/json"
	"testing"
)

func TestDecodeItemsArray(t *testing.T) {
	raw := json.RawMessage(`{"item": [{"facltNm": "가평 캠핑장"}, {"facltNm": "양평 캠핑장"}]}`)

	items, err := decodeItems(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].GetString("facltNm") != "가평 캠핑장" {
		t.Errorf("first item = %v", items[0])
	}
}

func TestDecodeItemsSingleObject(t *testing.T) {
	// A single hit comes back as an object, not a one-element array.
	raw := json.RawMessage(`{"item": {"facltNm": "가평 캠핑장"}}`)

	items, err := decodeItems(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].GetString("facltNm") != "가평 캠핑장" {
		t.Errorf("item = %v", items[0])
	}
}

func TestDecodeItemsEmpty(t *testing.T) {
	// No results: the gateway sends items as an empty string.
	for _, raw := range []string{`""`, ``, `null`} {
		items, err := decodeItems(json.RawMessage(raw))
		if err != nil {
			t.Fatalf("decodeItems(%q) failed: %v", raw, err)
		}
		if len(items) != 0 {
			t.Errorf("decodeItems(%q) = %v, want none", raw, items)
		}
	}
}

func TestEnvelopeParsing(t *testing.T) {
	body := `{
		"response": {
			"header": {"resultCode": "0000", "resultMsg": "OK"},
			"body": {
				"items": {"item": [{"crsKorNm": "해파랑길 1코스"}]},
				"totalCount": 1
			}
		}
	}`

	var env envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		t.Fatal(err)
	}
	if env.Response.Header.ResultCode != "0000" {
		t.Errorf("ResultCode = %q", env.Response.Header.ResultCode)
	}

	items, err := decodeItems(env.Response.Body.Items)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].GetString("crsKorNm") != "해파랑길 1코스" {
		t.Errorf("items = %v", items)
	}
}
