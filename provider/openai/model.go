package openai

import (
	"slices"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/chorus/api"
	"github.com/casualjim/chorus/provider"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var modelRegistry = haxmap.New[string, api.Model]()

func GPT4oMini(opts ...option.RequestOption) api.Model {
	return Model(openai.ChatModelGPT4oMini, opts...)
}

func GPT4o(opts ...option.RequestOption) api.Model {
	return Model(openai.ChatModelChatgpt4oLatest, opts...)
}

func O1Mini(opts ...option.RequestOption) api.Model {
	return Model(openai.ChatModelO1Mini, opts...)
}

func O1(opts ...option.RequestOption) api.Model {
	return Model(openai.ChatModelO1, opts...)
}

// Model returns the model registered under name, creating it with opts on first use.
// Later calls with the same name return the first model and ignore their opts.
func Model(name string, opts ...option.RequestOption) api.Model {
	m, _ := modelRegistry.GetOrCompute(name, func() api.Model {
		return &model{
			name: name,
			opts: opts,
		}
	})
	return m
}

// Models lists the names of every model created so far, sorted.
func Models() []string {
	names := make([]string, 0, modelRegistry.Len())
	modelRegistry.ForEach(func(name string, _ api.Model) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

var _ api.Model = (*model)(nil)

type model struct {
	name string
	opts []option.RequestOption

	prov     provider.Provider
	provOnce sync.Once
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Provider() provider.Provider {
	m.provOnce.Do(func() {
		m.prov = New(m.opts...)
	})
	return m.prov
}
