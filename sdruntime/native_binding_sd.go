//go:build sd && cgo && !stub

// CGo binding for stable-diffusion.cpp.
//
// Build with the library and header on the compiler paths:
//
//	CGO_CFLAGS="-I${SD_CPP_PATH}/include" \
//	CGO_LDFLAGS="-L${SD_CPP_PATH}/build/bin -lstable-diffusion -Wl,-rpath,${SD_CPP_PATH}/build/bin" \
//	go build -tags sd

package sdruntime

/*
#cgo LDFLAGS: -lstable-diffusion
#include <stdlib.h>
#include <stdint.h>
#include <stable-diffusion.h>

static sd_ctx_t* t2i_new_ctx(const char* model_path, int n_threads) {
	sd_ctx_params_t p;
	sd_ctx_params_init(&p);
	p.model_path = model_path;
	p.n_threads = n_threads;
	return new_sd_ctx(&p);
}

// t2i_txt2img generates one image. The caller frees the result with
// t2i_free_image.
static sd_image_t* t2i_txt2img(sd_ctx_t* ctx, const char* prompt, const char* negative,
                               int width, int height, int steps, float cfg, int64_t seed) {
	sd_img_gen_params_t p;
	sd_img_gen_params_init(&p);
	p.prompt = prompt;
	p.negative_prompt = negative;
	p.width = width;
	p.height = height;
	p.sample_params.sample_steps = steps;
	p.sample_params.guidance.txt_cfg = cfg;
	p.seed = seed;
	p.batch_count = 1;
	return generate_image(ctx, &p);
}

static void t2i_free_image(sd_image_t* img) {
	if (img == NULL) {
		return;
	}
	free(img->data);
	free(img);
}
*/
import "C"

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

const nativeLinked = true

// noGuidanceCFG is the scale at which stable-diffusion.cpp skips the
// unconditioned pass. Turbo requests carry 0.0 and map here.
const noGuidanceCFG = 1.0

var (
	contextCounter uint64

	contextsMu sync.Mutex
	contexts   = make(map[uint64]*C.sd_ctx_t)
)

func loadModelImpl(modelPath string) (*SDContext, error) {
	cModelPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cModelPath))

	cCtx := C.t2i_new_ctx(cModelPath, C.int(runtime.NumCPU()))
	if cCtx == nil {
		return nil, fmt.Errorf("%w: stable-diffusion.cpp rejected %s", ErrModelLoadFailed, modelPath)
	}

	id := atomic.AddUint64(&contextCounter, 1)
	contextsMu.Lock()
	contexts[id] = cCtx
	contextsMu.Unlock()

	return &SDContext{id: id, modelPath: modelPath, valid: true}, nil
}

func generateImageImpl(ctx *SDContext, params NativeParams) ([]byte, error) {
	contextsMu.Lock()
	cCtx, ok := contexts[ctx.id]
	contextsMu.Unlock()
	if !ok || cCtx == nil {
		return nil, fmt.Errorf("%w: no native context for id %d", ErrGenerationFailed, ctx.id)
	}

	cPrompt := C.CString(params.Prompt)
	defer C.free(unsafe.Pointer(cPrompt))
	cNegative := C.CString(params.NegativePrompt)
	defer C.free(unsafe.Pointer(cNegative))

	cfg := params.CFGScale
	if cfg <= 0 {
		cfg = noGuidanceCFG
	}

	img := C.t2i_txt2img(cCtx, cPrompt, cNegative,
		C.int(params.Width), C.int(params.Height), C.int(params.Steps),
		C.float(cfg), C.int64_t(params.Seed))
	if img == nil || img.data == nil {
		C.t2i_free_image(img)
		return nil, fmt.Errorf("%w: txt2img returned no image", ErrGenerationFailed)
	}
	defer C.t2i_free_image(img)

	width, height, channels := int(img.width), int(img.height), int(img.channel)
	pixels := C.GoBytes(unsafe.Pointer(img.data), C.int(width*height*channels))

	data, err := EncodePNG(pixels, width, height, channels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return data, nil
}

func freeContextImpl(ctx *SDContext) {
	contextsMu.Lock()
	cCtx, ok := contexts[ctx.id]
	delete(contexts, ctx.id)
	contextsMu.Unlock()

	if ok && cCtx != nil {
		C.free_sd_ctx(cCtx)
	}
}

func getBackendInfoImpl() string {
	if info := C.sd_get_system_info(); info != nil {
		return C.GoString(info)
	}
	return "stable-diffusion.cpp"
}
