// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lvfv

// Command builders for the host side

// StartCommand starts the motor at the stored frequency
func StartCommand() Command {
	return Command{Request: ReqStart}
}

// StopCommand brakes a running motor
func StopCommand() Command {
	return Command{Request: ReqStop}
}

// EmergencyCommand latches the emergency stop
func EmergencyCommand() Command {
	return Command{Request: ReqEmergency}
}

// SetFrequencyCommand sets the target frequency in Hz
func SetFrequencyCommand(hz uint16) Command {
	return Command{Request: ReqSetFrec, Value: hz, HasValue: true}
}

// SetAccelerationCommand sets the acceleration ramp in Hz/s
func SetAccelerationCommand(rate uint16) Command {
	return Command{Request: ReqSetAcel, Value: rate, HasValue: true}
}

// SetDecelerationCommand sets the deceleration ramp in Hz/s
func SetDecelerationCommand(rate uint16) Command {
	return Command{Request: ReqSetDesacel, Value: rate, HasValue: true}
}

// SetDirectionCommand sets the rotation direction
func SetDirectionCommand(dir uint16) Command {
	return Command{Request: ReqSetDir, Value: dir, HasValue: true}
}

// QueryCommand builds a GET_* or IS_STOP request
func QueryCommand(req Request) Command {
	return Command{Request: req}
}

// PollCommand asks for the result of the previous command on half-duplex links
func PollCommand() Command {
	return Command{Request: ReqResponse}
}
