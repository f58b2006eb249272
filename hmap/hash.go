// Copyright 2024 The Cockroach Authors
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

package hmap

// U16Hash is the 32-bit MurmurHash3 finalizer applied to a zero-extended
// uint16 key.
func U16Hash(key uint16) uint32 {
	return finalize32(uint32(key))
}

// U16Equal is pointwise equality on uint16 keys.
func U16Equal(a, b uint16) bool { return a == b }

// U32Hash is the 32-bit MurmurHash3 finalizer applied to a uint32 key.
func U32Hash(key uint32) uint32 {
	return finalize32(key)
}

// U32Equal is pointwise equality on uint32 keys.
func U32Equal(a, b uint32) bool { return a == b }

// U64Hash is the 64-bit MurmurHash3 finalizer applied to a uint64 key,
// truncated to its low 32 bits.
func U64Hash(key uint64) uint32 {
	return uint32(finalize64(key))
}

// U64Equal is pointwise equality on uint64 keys.
func U64Equal(a, b uint64) bool { return a == b }

// finalize32 is the 32-bit MurmurHash3 finalizer mix.
func finalize32(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}

// finalize64 is the 64-bit MurmurHash3 finalizer mix.
func finalize64(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}
