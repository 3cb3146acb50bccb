package gateway

import (
	"errors"
	"strings"
	"testing"

	"github.com/mxrobo/robodhs/internal/robot"
)

// stringNames extracts the registry names of sent set-string messages
// and any htos_log lines verbatim.
func stringNames(msgs []string) []string {
	var names []string
	for _, m := range msgs {
		if strings.HasPrefix(m, "htos_set_string_completed ") {
			names = append(names, strings.Fields(m)[1])
			continue
		}
		if strings.HasPrefix(m, "htos_log ") {
			names = append(names, m)
		}
	}
	return names
}

func TestOnRobotChangeFanOut(t *testing.T) {
	tests := []struct {
		attr string
		want []string
	}{
		{"status", []string{"robot_status"}},
		{"at_home", []string{"robot_status"}},
		{"safety_gate", []string{"robot_status"}},
		{"pins_mounted", []string{"robot_status"}},
		{"pins_lost", []string{"robot_status"}},
		{"task_progress", []string{"robot_status"}},
		{"warning", []string{"robot_status"}},
		{"gripper_command", []string{"robot_output"}},
		{"lid_command", []string{"robot_output"}},
		{"heater_command", []string{"robot_output"}},
		{"heater_air_command", []string{"robot_output"}},
		{"gripper_open", []string{"robot_input"}},
		{"gripper_closed", []string{"robot_input"}},
		{"lid_open", []string{"robot_input"}},
		{"lid_closed", []string{"robot_input"}},
		{"heater_hot", []string{"robot_input"}},
		{"closest_point", []string{"robot_state"}},
		{"ln2_level", []string{"robot_state"}},
		{"dumbbell_state", []string{"robot_state"}},
		{"current_port", []string{"robot_state"}},
		{"port_states", []string{"robot_cassette"}},
		{"holder_types", []string{"robot_cassette"}},
		{"sample_locations", []string{"robot_state", "robot_cassette"}},
		{"port_distances", []string{"robot_force_left", "robot_force_middle", "robot_force_right"}},
		{"height_errors", []string{"robot_force_left", "robot_force_middle", "robot_force_right"}},
		{"last_toolset_calibration", []string{"ts_robot_cal"}},
		{"last_goniometer_calibration", []string{"ts_robot_cal"}},
		{"mystery_attribute", nil},
	}
	for _, tt := range tests {
		t.Run(tt.attr, func(t *testing.T) {
			g, rec, _ := newTestGateway(t)

			g.OnRobotChange(tt.attr)

			got := stringNames(rec.messages())
			if len(got) != len(tt.want) {
				t.Fatalf("published %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("published %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestOnRobotChangeSnapshotPublishesAll(t *testing.T) {
	g, rec, _ := newTestGateway(t)

	g.OnRobotChange(robot.AttrSnapshot)

	want := []string{
		"robot_status", "robot_state", "robot_cassette",
		"robot_force_left", "robot_force_middle", "robot_force_right",
		"ts_robot_cal",
	}
	got := stringNames(rec.messages())
	if len(got) != len(want) {
		t.Fatalf("published %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("published %v, want %v", got, want)
			break
		}
	}
}

func TestTaskMessageForwarding(t *testing.T) {
	g, rec, drv := newTestGateway(t)
	drv.state.TaskMessage = "WARNING gripper slow"

	g.OnRobotChange("task_message")

	got := stringNames(rec.messages())
	want := []string{"robot_status", "htos_log warning gripper slow"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("published %v, want %v", got, want)
	}
}

func TestTaskMessageEmptyNotForwarded(t *testing.T) {
	g, rec, _ := newTestGateway(t)

	g.OnRobotChange("task_message")

	for _, m := range rec.messages() {
		if strings.HasPrefix(m, "htos_log") {
			t.Errorf("empty task message was forwarded: %q", m)
		}
	}
}

func TestSystemErrorForwarding(t *testing.T) {
	tests := []struct {
		value string
		want  []string
	}{
		{"Bad bad happened", []string{"htos_log error Bad bad happened"}},
		{"OK", nil},
		// Only the OK clear marker is suppressed; an explicit empty
		// value still forwards.
		{"", []string{"htos_log error "}},
	}
	for _, tt := range tests {
		t.Run("value "+tt.value, func(t *testing.T) {
			g, rec, drv := newTestGateway(t)
			drv.state.SystemErrorMessage = tt.value

			g.OnRobotChange("system_error_message")

			got := stringNames(rec.messages())
			if len(got) != len(tt.want) {
				t.Fatalf("published %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("published %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestPublishStatusContent(t *testing.T) {
	g, rec, drv := newTestGateway(t)
	drv.state.AtHome = 1
	drv.state.Status = robot.NeedClear

	g.PublishStatus()

	msgs := rec.messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %v", msgs)
	}
	wantPrefix := "htos_set_string_completed robot_status normal status: 1 "
	if !strings.HasPrefix(msgs[0], wantPrefix) {
		t.Errorf("message = %q, want prefix %q", msgs[0], wantPrefix)
	}
}

func TestPublishFailureCountsNothing(t *testing.T) {
	g, rec, _ := newTestGateway(t)
	rec.setError(errors.New("link down"))

	g.PublishAll()

	if got := g.Stats().StringsPublished; got != 0 {
		t.Errorf("StringsPublished = %d, want 0", got)
	}
}

func TestObserverNotified(t *testing.T) {
	g, _, _ := newTestGateway(t)

	var calls int
	g.SetObserver(func() { calls++ })

	g.PublishStatus()
	g.PublishState()

	if calls != 2 {
		t.Errorf("observer ran %d times, want 2", calls)
	}
}

func TestSendLogCounts(t *testing.T) {
	g, rec, _ := newTestGateway(t)

	g.SendLog("note", "homed")

	msgs := rec.messages()
	if len(msgs) != 1 || msgs[0] != "htos_log note homed" {
		t.Errorf("sent %v", msgs)
	}
	if got := g.Stats().LogsSent; got != 1 {
		t.Errorf("LogsSent = %d, want 1", got)
	}
}
