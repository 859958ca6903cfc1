package abi

import "testing"

func TestCommandString(t *testing.T) {
	for cmd := Command(0); cmd < CommandMax; cmd++ {
		if s := cmd.String(); s == "" || s == "invalid" {
			t.Errorf("missing string representation of command %d", cmd)
		}
	}
	if got := Command(200).String(); got != "invalid" {
		t.Errorf("want invalid for out-of-range command, got %s", got)
	}
}

func TestDeviceDispatch(t *testing.T) {
	var got *Request
	dev := &Device{Title: "test", ID: DeviceStdio}
	dev.Commands[CmdWrite] = func(req *Request) Result {
		got = req
		req.Actual = len(req.Data)
		return Done
	}

	req := &Request{Device: DeviceStdio, Data: []byte("abc")}
	if res := dev.Do(CmdWrite, req); res != Done {
		t.Fatalf("want Done, got %d", res)
	}
	if got != req {
		t.Fatal("handler did not receive the request")
	}
	if req.Actual != 3 {
		t.Errorf("want actual 3, got %d", req.Actual)
	}
}

func TestDeviceDispatchUnhandled(t *testing.T) {
	dev := &Device{Title: "test"}
	for _, cmd := range []Command{CmdInit, CmdPoll, CommandMax, Command(200)} {
		req := &Request{}
		if res := dev.Do(cmd, req); res != Failed {
			t.Errorf("%s: want Failed, got %d", cmd, res)
		}
		if req.Error != CodeNoCommand {
			t.Errorf("%s: want error code %d, got %d", cmd, CodeNoCommand, req.Error)
		}
	}
}
