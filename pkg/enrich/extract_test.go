package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avative-pat/FiberMonitorMap/pkg/models"
)

func TestExtractInventoryRef(t *testing.T) {
	tests := []struct {
		name     string
		alarm    models.RawAlarm
		wantOnt  string
		wantItem string
		wantOK   bool
	}{
		{
			name:     "ont-id carries the reference",
			alarm:    models.RawAlarm{OntID: "sonar_item_5014"},
			wantOnt:  "sonar_item_5014",
			wantItem: "5014",
			wantOK:   true,
		},
		{
			name:     "fallback to resource scan",
			alarm:    models.RawAlarm{OntID: "101", Resource: "ONT: sonar_item_6455 link loss"},
			wantOnt:  "sonar_item_6455",
			wantItem: "6455",
			wantOK:   true,
		},
		{
			name:   "numeric ont-id with no resource match",
			alarm:  models.RawAlarm{OntID: "101", Resource: "shelf 1 slot 2"},
			wantOK: false,
		},
		{
			name:   "unmanaged device",
			alarm:  models.RawAlarm{},
			wantOK: false,
		},
		{
			name:   "prefix without digits",
			alarm:  models.RawAlarm{OntID: "sonar_item_"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := ExtractInventoryRef(&tt.alarm)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantOnt, ref.OntID)
				assert.Equal(t, tt.wantItem, ref.ItemID)
			}
		})
	}
}

func TestExtractPonPort(t *testing.T) {
	tests := []struct {
		name  string
		alarm models.RawAlarm
		want  string
	}{
		{
			name:  "port field already a path",
			alarm: models.RawAlarm{Port: "1/2/3", ShelfID: "9", SlotID: "9", PortID: "9"},
			want:  "1/2/3",
		},
		{
			name:  "assembled from shelf slot port",
			alarm: models.RawAlarm{ShelfID: "1", SlotID: "2", PortID: "xp3"},
			want:  "1/2/xp3",
		},
		{
			name:  "ont id from address xpath",
			alarm: models.RawAlarm{Address: "/config/device[name='OLT-1']/ont[ont-id='sonar_item_5014']"},
			want:  "sonar_item_5014",
		},
		{
			name:  "no port information",
			alarm: models.RawAlarm{Port: "4"},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPonPort(&tt.alarm))
		})
	}
}

func TestFullAddress(t *testing.T) {
	line1 := "123 Main St"
	city := "Provo"
	state := "UT"
	zip := "84601"
	empty := ""
	null := "null"

	got := FullAddress(&line1, nil, &city, &state, &zip)
	if assert.NotNil(t, got) {
		assert.Equal(t, "123 Main St, Provo, UT, 84601", *got)
	}

	got = FullAddress(&line1, &empty, &null, nil)
	if assert.NotNil(t, got) {
		assert.Equal(t, "123 Main St", *got)
	}

	assert.Nil(t, FullAddress(nil, &empty, &null))
}
