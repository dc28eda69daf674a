package stats

import (
	"bytes"
	"fmt"
	"testing"
)

/*
Utilities for validating the stats registry contents
*/
type RuleChecker struct {
	name    string
	checker func(got, expected interface{}) bool
}

/*
got must be an int64, expected an int
*/
var Int64EqTest = RuleChecker{name: "Int64EqTest", checker: func(a, b interface{}) bool {
	aint, ok := a.(int64)
	return ok && aint == int64(b.(int))
}}

/*
got must be an int64, expected an int
*/
var Int64GTETest = RuleChecker{name: "Int64GTETest", checker: func(a, b interface{}) bool {
	aint, ok := a.(int64)
	return ok && aint >= int64(b.(int))
}}

var FloatEqTest = RuleChecker{name: "FloatEqTest", checker: func(a, b interface{}) bool {
	aflt, ok := a.(float64)
	return ok && aflt == b.(float64)
}}

var DoesNotExistTest = RuleChecker{name: "DoesNotExistTest", checker: func(a, b interface{}) bool {
	return a == nil
}}

type Rule struct {
	Checker RuleChecker
	Value   interface{}
}

/*
Verify that the stats registry contains values for the keys in contains and that
each entry conforms to the rule associated with that key.
*/
func VerifyStats(tag string, statsRegistry StatsRegistry, t *testing.T, contains map[string]Rule) {
	reg, ok := statsRegistry.(*jsonStatsRegistry)
	if !ok {
		t.Errorf("%s: VerifyStats requires a json stats registry, got %T", tag, statsRegistry)
		return
	}
	asJson := reg.MarshalAll()

	failed := false
	var msg bytes.Buffer
	msg.WriteString(tag + ": stats registry error:\n")
	for key, rule := range contains {
		got := asJson[key]
		if rule.Checker.checker(got, rule.Value) {
			continue
		}
		failed = true
		if rule.Checker.name == DoesNotExistTest.name {
			fmt.Fprintf(&msg, "%s: found stat entry when there should not be one\n", key)
		} else {
			fmt.Fprintf(&msg, "%s: got %v, expected to pass %s with %v\n", key, got, rule.Checker.name, rule.Value)
		}
	}
	if failed {
		pretty, _ := reg.MarshalJSONPretty()
		t.Errorf("%s\n%s", msg.String(), pretty)
	}
}
