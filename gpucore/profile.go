// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"fmt"
	"strconv"
	"strings"
)

// Profile is a target profile such as "lib_6_8": a shader stage and a
// shader model version.
type Profile struct {
	Stage string
	Major int
	Minor int
}

// Profile stages.
const (
	StageCompute = "cs"
	StageLibrary = "lib"
	StageVertex  = "vs"
	StagePixel   = "ps"
)

var profileStages = map[string]bool{
	StageCompute: true,
	StageLibrary: true,
	StageVertex:  true,
	StagePixel:   true,
}

// ParseProfile parses "<stage>_<major>_<minor>".
func ParseProfile(s string) (Profile, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 3 {
		return Profile{}, fmt.Errorf("%w: profile %q is not <stage>_<major>_<minor>", ErrInvalidArgument, s)
	}
	if !profileStages[parts[0]] {
		return Profile{}, fmt.Errorf("%w: profile %q has unknown stage %q", ErrInvalidArgument, s, parts[0])
	}
	major, err := strconv.Atoi(parts[1])
	if err != nil || major < 0 {
		return Profile{}, fmt.Errorf("%w: profile %q has bad major version", ErrInvalidArgument, s)
	}
	minor, err := strconv.Atoi(parts[2])
	if err != nil || minor < 0 {
		return Profile{}, fmt.Errorf("%w: profile %q has bad minor version", ErrInvalidArgument, s)
	}
	return Profile{Stage: parts[0], Major: major, Minor: minor}, nil
}

// String returns the profile in "<stage>_<major>_<minor>" form.
func (p Profile) String() string {
	return fmt.Sprintf("%s_%d_%d", p.Stage, p.Major, p.Minor)
}

// AtLeast reports whether the shader model is major.minor or newer.
func (p Profile) AtLeast(major, minor int) bool {
	return p.Major > major || (p.Major == major && p.Minor >= minor)
}

// Shader model limits for work graphs.
const (
	// WorkGraphShaderModelMajor and WorkGraphShaderModelMinor are the first
	// shader model with work graph nodes.
	WorkGraphShaderModelMajor = 6
	WorkGraphShaderModelMinor = 8

	// LatestShaderModelMajor and LatestShaderModelMinor bound accepted profiles.
	LatestShaderModelMajor = 6
	LatestShaderModelMinor = 9
)

// SupportsWorkGraphs reports whether the profile can hold work graph nodes.
func (p Profile) SupportsWorkGraphs() bool {
	return p.Stage == StageLibrary && p.AtLeast(WorkGraphShaderModelMajor, WorkGraphShaderModelMinor)
}

// Experimental reports whether the shader model needs
// FeatureExperimentalShaderModels.
func (p Profile) Experimental() bool {
	return p.AtLeast(WorkGraphShaderModelMajor, WorkGraphShaderModelMinor)
}
