package region

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"tourpost/internal/item"
	"tourpost/internal/topic"
)

func campingItems() []item.Item {
	items := []item.Item{
		{Title: "가평 A 캠핑장", Province: "경기도", District: "가평군"},
		{Title: "가평 B 캠핑장", Province: "경기도", District: "가평군"},
		{Title: "가평 C 캠핑장", Province: "경기도", District: "가평군"},
		{Title: "가평 D 캠핑장", Province: "경기도", District: "가평군"},
		{Title: "양양 A 캠핑장", Province: "강원특별자치도", District: "양양군"},
		{Title: "양양 B 캠핑장", Province: "강원특별자치도", District: "양양군"},
		{Title: "제주 A 캠핑장", Province: "제주특별자치도", District: "제주시"},
		{Title: "무주 A 캠핑장", Province: "전북특별자치도", District: "무주군"},
		{Title: "이름없는도 캠핑장", Province: "", District: ""},
		{Title: "단양 A 캠핑장", Province: "충청북도", District: "단양군"},
	}
	return items
}

func TestGroupDropsItemsWithoutProvince(t *testing.T) {
	groups := Group(campingItems())

	if _, ok := groups[""]; ok {
		t.Error("items without a province must not form a group")
	}
	if got := len(groups["경기도 가평군"]); got != 4 {
		t.Errorf("가평군 group size = %d, want 4", got)
	}
}

func TestSelectRequiresMinItems(t *testing.T) {
	groups := Group(campingItems())
	rng := rand.New(rand.NewSource(1))

	key, group, err := Select(groups, 3, nil, rng)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if key != "경기도 가평군" {
		t.Errorf("selected %q, want the only region with 3+ items", key)
	}
	if len(group) != 4 {
		t.Errorf("group size = %d, want 4", len(group))
	}
}

func TestSelectNoCandidates(t *testing.T) {
	groups := Group(campingItems())
	rng := rand.New(rand.NewSource(1))

	_, _, err := Select(groups, 5, nil, rng)
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("err = %v, want ErrNoCandidates", err)
	}
}

func TestSelectAvoidsRecentRegions(t *testing.T) {
	items := append(campingItems(),
		item.Item{Title: "양양 C 캠핑장", Province: "강원특별자치도", District: "양양군"})
	groups := Group(items)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 20; i++ {
		key, _, err := Select(groups, 3, []string{"경기도 가평군"}, rng)
		if err != nil {
			t.Fatalf("Select failed: %v", err)
		}
		if key == "경기도 가평군" {
			t.Fatal("picked a recently covered region while another was eligible")
		}
	}
}

func TestSelectIgnoresHistoryWhenNothingFresh(t *testing.T) {
	groups := Group(campingItems())
	rng := rand.New(rand.NewSource(1))

	key, _, err := Select(groups, 3, []string{"경기도 가평군"}, rng)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if key != "경기도 가평군" {
		t.Errorf("selected %q, want history waived for the only eligible region", key)
	}
}

func TestSampleBounds(t *testing.T) {
	var items []item.Item
	for i := 0; i < 12; i++ {
		items = append(items, item.Item{Title: fmt.Sprintf("장소 %d", i)})
	}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 50; i++ {
		got := Sample(items, 3, 6, rng)
		if len(got) < 3 || len(got) > 6 {
			t.Fatalf("sample size %d outside [3, 6]", len(got))
		}
		seen := make(map[string]bool)
		for _, it := range got {
			if seen[it.Title] {
				t.Fatalf("item %q sampled twice", it.Title)
			}
			seen[it.Title] = true
		}
	}
}

func TestSampleSmallPool(t *testing.T) {
	items := campingItems()[:2]
	rng := rand.New(rand.NewSource(1))

	got := Sample(items, 3, 6, rng)
	if len(got) != 2 {
		t.Errorf("sample of undersized pool = %d items, want all 2", len(got))
	}
}

func TestDedupeSeries(t *testing.T) {
	var items []item.Item
	for i := 0; i < 4; i++ {
		items = append(items, item.Item{Title: fmt.Sprintf("해파랑길 %d코스", i+1), Series: "haeparang"})
	}
	for i := 0; i < 5; i++ {
		items = append(items, item.Item{Title: fmt.Sprintf("둘레길 %d", i+1), Series: fmt.Sprintf("route-%d", i)})
	}

	got := DedupeSeries(items)
	if len(got) != 6 {
		t.Fatalf("got %d items, want 6 (one per route)", len(got))
	}

	count := 0
	for _, it := range got {
		if it.Series == "haeparang" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("haeparang segments kept = %d, want 1", count)
	}
}

func TestDedupeSeriesRelaxedForSmallPools(t *testing.T) {
	items := []item.Item{
		{Title: "해파랑길 1코스", Series: "haeparang"},
		{Title: "해파랑길 2코스", Series: "haeparang"},
		{Title: "해파랑길 3코스", Series: "haeparang"},
		{Title: "남파랑길 1코스", Series: "namparang"},
	}

	got := DedupeSeries(items)
	if len(got) != len(items) {
		t.Errorf("small pool should keep all segments, got %d of %d", len(got), len(items))
	}
}

// Ten raw campground records, four of them glamping sites in one county:
// the filter keeps the four, the county is the only eligible group, and
// the sampled article covers 3 or 4 of them.
func TestGlampingSelectionScenario(t *testing.T) {
	var raws []item.Raw
	for i := 0; i < 4; i++ {
		raws = append(raws, item.Raw{
			"facltNm":   fmt.Sprintf("가평 글램핑 %d호점", i+1),
			"doNm":      "경기도",
			"sigunguNm": "가평군",
			"induty":    "글램핑",
		})
	}
	others := []struct{ do, sigungu string }{
		{"강원특별자치도", "양양군"}, {"강원특별자치도", "홍천군"}, {"충청북도", "단양군"},
		{"전라남도", "담양군"}, {"경상북도", "문경시"}, {"제주특별자치도", "제주시"},
	}
	for i, o := range others {
		raws = append(raws, item.Raw{
			"facltNm":   fmt.Sprintf("일반 야영장 %d", i+1),
			"doNm":      o.do,
			"sigunguNm": o.sigungu,
			"induty":    "일반야영장",
		})
	}

	filtered := topic.ApplyFilter(raws, topic.Filter{Key: "induty", Contains: "글램핑"})
	if len(filtered) != 4 {
		t.Fatalf("filter kept %d records, want 4", len(filtered))
	}

	var items []item.Item
	for _, r := range filtered {
		it, ok := item.NormalizeCamping(r)
		if !ok {
			t.Fatalf("normalize rejected %v", r)
		}
		items = append(items, it)
	}

	rng := rand.New(rand.NewSource(11))
	key, group, err := Select(Group(items), 3, nil, rng)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if key != "경기도 가평군" {
		t.Fatalf("selected region %q", key)
	}

	picks := Sample(group, 3, 6, rng)
	if len(picks) < 3 || len(picks) > 4 {
		t.Fatalf("candidate set size %d outside [3, 4]", len(picks))
	}
	for _, it := range picks {
		if it.Region() != key {
			t.Errorf("item %q in region %q, want %q", it.Title, it.Region(), key)
		}
	}
}

func TestCanonicalize(t *testing.T) {
	aliases := Aliases{"강원": "강원특별자치도", "경기": "경기도"}
	items := []item.Item{
		{Title: "양양 캠핑장", Province: "강원", District: "양양군"},
		{Title: "제주 캠핑장", Province: "제주특별자치도", District: "제주시"},
	}

	got := aliases.Canonicalize(items)
	if got[0].Province != "강원특별자치도" {
		t.Errorf("Province = %q, want alias applied", got[0].Province)
	}
	if got[1].Province != "제주특별자치도" {
		t.Errorf("Province = %q, want unchanged", got[1].Province)
	}
}

func TestCanonicalizeFromAddress(t *testing.T) {
	aliases := Aliases{"경기": "경기도", "서울": "서울특별시"}
	items := []item.Item{
		{Title: "주소만 있는 캠핑장", Address: "경기 가평군 상면 123"},
		{Title: "주소도 없는 캠핑장"},
	}

	got := aliases.Canonicalize(items)
	if got[0].Province != "경기도" {
		t.Errorf("Province = %q, want resolved from address", got[0].Province)
	}
	if got[1].Province != "" {
		t.Errorf("Province = %q, want empty", got[1].Province)
	}
}

func TestCanonicalizeFromAddressPrefersLeadingProvince(t *testing.T) {
	// An address can mention a second province (a branch office, a road
	// name); the one the address starts with is the real location.
	aliases := Aliases{"경기": "경기도", "서울": "서울특별시"}
	items := []item.Item{
		{Title: "두 지명 캠핑장", Address: "경기 가평군 상면 123 (서울 사무소 운영)"},
	}

	for i := 0; i < 20; i++ {
		got := aliases.Canonicalize(items)
		if got[0].Province != "경기도" {
			t.Fatalf("Province = %q, want the province the address starts with", got[0].Province)
		}
	}
}
