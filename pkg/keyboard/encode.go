// Copyright 2026 The ringzero Authors.
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

package keyboard

import (
	"errors"
	"fmt"
)

// ErrNoScancode is returned for characters the US layout cannot type.
var ErrNoScancode = errors.New("no scancode for character")

// KeyScancodes returns the set 1 make and break bytes of key k.
func KeyScancodes(k KeyCode) (mk, brk []byte, err error) {
	code, extended, ok := set1Encode(k)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnknownKeyCode, k)
	}
	if extended {
		return []byte{set1Extended, code}, []byte{set1Extended, code | set1Break}, nil
	}
	return []byte{code}, []byte{code | set1Break}, nil
}

// ScancodesFor returns the set 1 bytes that type r on a US 104-key board
// with num lock on and caps lock off, wrapping the key in a left shift
// press and release when r is a shifted character.
func ScancodesFor(r rune) ([]byte, error) {
	k, shift, ok := us104Reverse(r)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoScancode, r)
	}
	mk, brk, err := KeyScancodes(k)
	if err != nil {
		return nil, err
	}
	var out []byte
	if shift {
		out = append(out, 0x2a)
	}
	out = append(out, mk...)
	out = append(out, brk...)
	if shift {
		out = append(out, 0xaa)
	}
	return out, nil
}

// us104Reverse finds the main-block key that types r.
func us104Reverse(r rune) (KeyCode, bool, bool) {
	for k, l := range us104Letters {
		switch r {
		case l:
			return k, false, true
		case l - 'a' + 'A':
			return k, true, true
		}
	}
	// Prefer main-block keys over duplicates on the keypad and the
	// OEM key.
	var (
		found   KeyCode
		shifted bool
		ok      bool
	)
	for k, p := range us104Symbols {
		if k == Oem102 || isNumpad(k) {
			continue
		}
		switch r {
		case p.plain:
			return k, false, true
		case p.shifted:
			found, shifted, ok = k, true, true
		}
	}
	return found, shifted, ok
}

func isNumpad(k KeyCode) bool {
	return k >= NumpadLock && k <= NumpadPeriod
}
