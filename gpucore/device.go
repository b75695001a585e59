package gpucore

// Device abstracts over the GPU backends the cache streams into.
//
// The cache calls a Device only from the render thread that owns the GPU
// context, so implementations do not need to be safe for concurrent use,
// although they may be.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - Destroying a resource while in use is undefined behavior
//   - IDs become invalid after destruction and must not be reused
type Device interface {
	// === Capabilities ===

	// Capabilities reports the device limits and optional features.
	Capabilities() Capabilities

	// === Texture Management ===

	// CreateTexture creates a texture. Its contents are undefined until
	// written.
	CreateTexture(desc TextureDesc) (TextureID, error)

	// DestroyTexture releases a texture.
	DestroyTexture(id TextureID)

	// UploadTexture writes a sub-rectangle of a texture from tightly packed
	// texel data (region.Width*region.Height texels).
	UploadTexture(id TextureID, region Region, data []byte) error

	// CopyTexture copies the top-left width x height texels of src into dst.
	// Devices reporting either CopyTexture or FloatRenderTarget must
	// implement it, by a direct copy or by a blit through a render target.
	CopyTexture(dst, src TextureID, width, height int) error

	// === Programs and Vertex Input ===

	// CreateProgram creates one of the device's fixed programs.
	CreateProgram(kind ProgramKind) (ProgramID, error)

	// DestroyProgram releases a program.
	DestroyProgram(id ProgramID)

	// CreateBuffer creates an empty vertex buffer.
	CreateBuffer(kind BufferKind) (BufferID, error)

	// AllocateBuffer (re)allocates storage for count vertices. Previous
	// contents are discarded.
	AllocateBuffer(id BufferID, count int) error

	// WriteBuffer writes data at the given byte offset.
	WriteBuffer(id BufferID, offset int, data []byte) error

	// DestroyBuffer releases a vertex buffer.
	DestroyBuffer(id BufferID)

	// CreateVertexArray binds buffers to a program's vertex inputs.
	CreateVertexArray(desc VertexArrayDesc) (VertexArrayID, error)

	// DestroyVertexArray releases a vertex array. The buffers it references
	// are not destroyed.
	DestroyVertexArray(id VertexArrayID)

	// === Drawing ===

	// DrawPoints binds target as the render target, disables depth testing
	// and blending, and issues a non-indexed point draw of count vertices.
	DrawPoints(target TextureID, program ProgramID, vao VertexArrayID, count int) error
}
