package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ggpaint/gpucore"
	"github.com/gogpu/ggpaint/internal/blend"
)

// programSource is a resolved program: its WGSL and, per texture binding,
// whether the shader writes it. The uniform block follows the textures.
type programSource struct {
	wgsl   string
	writes []bool
}

func (p programSource) bindings() int { return len(p.writes) + 1 }

// resolveProgram maps a program name to its shader.
func resolveProgram(program string) (programSource, error) {
	switch program {
	case gpucore.BrushProgram:
		return programSource{wgsl: BrushShaderSource(), writes: []bool{true}}, nil
	case gpucore.GaussianProgram:
		writes := make([]bool, gpucore.FilterBindingCount)
		writes[gpucore.FilterBindingDst] = true
		return programSource{wgsl: GaussianShaderSource(), writes: writes}, nil
	}
	if mode, ok := gpucore.ParseBlendProgram(program); ok {
		e, ok := blend.Lookup(mode)
		if !ok {
			return programSource{}, fmt.Errorf("%w: %q", gpucore.ErrUnknownProgram, program)
		}
		writes := make([]bool, gpucore.BlendBindingCount)
		writes[gpucore.BlendBindingOut] = true
		return programSource{wgsl: BlendShaderSource(e.WGSL), writes: writes}, nil
	}
	return programSource{}, fmt.Errorf("%w: %q", gpucore.ErrUnknownProgram, program)
}

// pipeline holds the HAL objects of one compute program.
type pipeline struct {
	program string
	writes  []bool

	module     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	compute    hal.ComputePipeline
}

func createPipeline(device hal.Device, program string) (*pipeline, error) {
	src, err := resolveProgram(program)
	if err != nil {
		return nil, err
	}
	spirv, err := compileSPIRV(src.wgsl)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", program, err)
	}

	p := &pipeline{program: program, writes: src.writes}
	p.module, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  program,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: create shader module: %w", program, err)
	}

	entries := make([]gputypes.BindGroupLayoutEntry, 0, src.bindings())
	for i, w := range src.writes {
		typ := gputypes.BufferBindingTypeReadOnlyStorage
		if w {
			typ = gputypes.BufferBindingTypeStorage
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i), //nolint:gosec // binding count is small
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: typ},
		})
	}
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding:    uint32(len(src.writes)), //nolint:gosec // binding count is small
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	})

	p.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   program + " bind layout",
		Entries: entries,
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("%s: create bind group layout: %w", program, err)
	}
	p.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            program + " layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("%s: create pipeline layout: %w", program, err)
	}
	p.compute, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   program,
		Layout:  p.pipeLayout,
		Compute: hal.ComputeState{Module: p.module, EntryPoint: "main"},
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("%s: create compute pipeline: %w", program, err)
	}
	return p, nil
}

// destroy releases the pipeline objects in reverse creation order.
func (p *pipeline) destroy(device hal.Device) {
	if p.compute != nil {
		device.DestroyComputePipeline(p.compute)
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
	}
	if p.module != nil {
		device.DestroyShaderModule(p.module)
	}
}
