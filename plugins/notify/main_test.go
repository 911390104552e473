package main

import "testing"

func TestNotificationScript(t *testing.T) {
	tests := []struct {
		name  string
		msg   string
		sound string
		want  string
	}{
		{
			name: "plain",
			msg:  "Saved drawing.png (1280x720)",
			want: `display notification "Saved drawing.png (1280x720)" with title "Mudra"`,
		},
		{
			name:  "with sound",
			msg:   "Canvas cleared",
			sound: "Glass",
			want:  `display notification "Canvas cleared" with title "Mudra" sound name "Glass"`,
		},
		{
			name: "quotes escaped",
			msg:  `my "best" drawing`,
			want: `display notification "my \"best\" drawing" with title "Mudra"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := notificationScript(tt.msg, tt.sound); got != tt.want {
				t.Errorf("notificationScript() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessages(t *testing.T) {
	msg := messages["save"](Request{Path: "/data/drawing_20261019_101010.png", Width: 640, Height: 480})
	if msg != "Saved drawing_20261019_101010.png (640x480)" {
		t.Errorf("save message = %q", msg)
	}
	if _, ok := messages["undo"]; ok {
		t.Error("undo is not a plugin event")
	}
}
