// Copyright 2025 The Marketscribe Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stream

import "fmt"

// TurnFailedError is returned when the runtime reports a failed turn.
// Any partial response text observed before the failure is discarded.
type TurnFailedError struct {
	Message string
}

func (err TurnFailedError) Error() string {
	return fmt.Sprintf("turn failed: %s", err.Message)
}

func NewTurnFailedError(message string) TurnFailedError {
	return TurnFailedError{Message: message}
}

// EmptyResponseError is returned when the event sequence is exhausted
// without a usable agent message.
type EmptyResponseError struct{}

func (EmptyResponseError) Error() string {
	return "turn produced no response text"
}

func NewEmptyResponseError() EmptyResponseError {
	return EmptyResponseError{}
}
