package models

import "testing"

func TestValidateSizes(t *testing.T) {
	tests := []struct {
		name    string
		min     int
		desired int
		max     int
		wantErr bool
	}{
		{"in bounds", 1, 2, 3, false},
		{"unbounded max", 0, 100, Unbounded, false},
		{"min above desired", 3, 2, 5, true},
		{"desired above max", 0, 6, 5, true},
		{"min above max", 4, 4, 3, true},
		{"negative min", -1, 0, 5, true},
		{"negative max other than -1", 0, 0, -2, true},
		{"zero everything", 0, 0, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := &Cluster{MinSize: tc.min, DesiredCapacity: tc.desired, MaxSize: tc.max}
			err := c.ValidateSizes()
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidateSizes() err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestLoadBalancerData(t *testing.T) {
	c := &Cluster{Data: JSONMap{}}
	if _, ok := c.LoadBalancerData("p1"); ok {
		t.Fatal("no data expected before set")
	}
	c.SetLoadBalancerData("p1", JSONMap{"vip_address": "10.0.0.1", "pool": "pool-1"})
	got, ok := c.LoadBalancerData("p1")
	if !ok {
		t.Fatal("expected data after set")
	}
	if got["vip_address"] != "10.0.0.1" {
		t.Errorf("vip = %v", got["vip_address"])
	}
	c.ClearLoadBalancerData("p1")
	if _, ok := c.LoadBalancerData("p1"); ok {
		t.Error("data should be gone after clear")
	}
}
