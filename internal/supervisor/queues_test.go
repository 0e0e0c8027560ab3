package supervisor

import (
	"reflect"
	"testing"
	"time"
)

func TestParseQueues_Wildcard(t *testing.T) {
	pools := ParseQueues("*", 5, time.Second, 15)
	if len(pools) != 1 {
		t.Fatalf("expected 1 pool, got %d", len(pools))
	}
	p := pools[0]
	if len(p.QueueNames) != 0 {
		t.Errorf("expected an unfiltered pool, got QueueNames=%v", p.QueueNames)
	}
	if p.Concurrency != 5 {
		t.Errorf("expected default concurrency 5, got %d", p.Concurrency)
	}
}

func TestParseQueues_NamedGroupsWithConcurrency(t *testing.T) {
	pools := ParseQueues("default:3,mailers:2", 5, time.Second, 0)
	if len(pools) != 1 {
		t.Fatalf("expected 1 pool, got %d", len(pools))
	}
	p := pools[0]
	if !reflect.DeepEqual(p.QueueNames, []string{"default", "mailers"}) {
		t.Errorf("unexpected queue names: %v", p.QueueNames)
	}
	if p.Concurrency != 5 {
		t.Errorf("expected summed concurrency 3+2=5, got %d", p.Concurrency)
	}
}

func TestParseQueues_ExclusionPrefix(t *testing.T) {
	pools := ParseQueues("*,-mailers", 5, time.Second, 0)
	p := pools[0]
	if len(p.QueueNames) != 0 {
		t.Errorf("expected an unfiltered pool aside from the exclusion, got %v", p.QueueNames)
	}
	if !reflect.DeepEqual(p.ExcludedQueues, []string{"mailers"}) {
		t.Errorf("expected mailers excluded, got %v", p.ExcludedQueues)
	}
}

func TestParseQueues_MultiplePoolsSeparatedBySemicolon(t *testing.T) {
	pools := ParseQueues("default:2;low:1", 5, time.Second, 0)
	if len(pools) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(pools))
	}
	if pools[0].Concurrency != 2 || pools[1].Concurrency != 1 {
		t.Errorf("unexpected per-pool concurrency: %+v", pools)
	}
}

func TestParseQueues_OrderedPrefixIsStrippedFromName(t *testing.T) {
	pools := ParseQueues("+priority", 5, time.Second, 0)
	if !reflect.DeepEqual(pools[0].QueueNames, []string{"priority"}) {
		t.Errorf("expected ordered prefix stripped, got %v", pools[0].QueueNames)
	}
}
