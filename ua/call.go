// Copyright 2025 Edgeo SCADA
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


package ua

// TranslateBrowsePathsRequest resolves browse paths to node ids.
type TranslateBrowsePathsRequest struct {
	RequestHeader RequestHeader
	BrowsePaths   []BrowsePath
}

func (r *TranslateBrowsePathsRequest) ServiceID() ServiceID   { return ServiceTranslateBrowsePaths }
func (r *TranslateBrowsePathsRequest) Header() *RequestHeader { return &r.RequestHeader }

func (r *TranslateBrowsePathsRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteInt32(int32(len(r.BrowsePaths)))
	for _, p := range r.BrowsePaths {
		e.WriteNodeID(p.StartingNode)
		e.WriteInt32(int32(len(p.RelativePath.Elements)))
		for _, el := range p.RelativePath.Elements {
			e.WriteNodeID(el.ReferenceTypeID)
			e.WriteBoolean(el.IsInverse)
			e.WriteBoolean(el.IncludeSubtypes)
			e.WriteQualifiedName(el.TargetName)
		}
	}
}

func (r *TranslateBrowsePathsRequest) Decode(d *Decoder) {
	r.RequestHeader.Decode(d)
	n := d.ReadArrayLength()
	if n <= 0 {
		return
	}
	r.BrowsePaths = make([]BrowsePath, 0, n)
	for i := 0; i < n && d.Err() == nil; i++ {
		p := BrowsePath{StartingNode: d.ReadNodeID()}
		if m := d.ReadArrayLength(); m > 0 {
			p.RelativePath.Elements = make([]RelativePathElement, 0, m)
			for j := 0; j < m && d.Err() == nil; j++ {
				p.RelativePath.Elements = append(p.RelativePath.Elements, RelativePathElement{
					ReferenceTypeID: d.ReadNodeID(),
					IsInverse:       d.ReadBoolean(),
					IncludeSubtypes: d.ReadBoolean(),
					TargetName:      d.ReadQualifiedName(),
				})
			}
		}
		r.BrowsePaths = append(r.BrowsePaths, p)
	}
}

// TranslateBrowsePathsResponse carries one BrowsePathResult per path.
type TranslateBrowsePathsResponse struct {
	ResponseHeader ResponseHeader
	Results        []BrowsePathResult
}

func (r *TranslateBrowsePathsResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *TranslateBrowsePathsResponse) Decode(d *Decoder) {
	r.ResponseHeader.Decode(d)
	if r.ResponseHeader.ServiceResult.IsBad() {
		return
	}
	if n := d.ReadArrayLength(); n > 0 {
		r.Results = make([]BrowsePathResult, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			res := BrowsePathResult{StatusCode: d.ReadStatusCode()}
			if m := d.ReadArrayLength(); m > 0 {
				res.Targets = make([]BrowsePathTarget, 0, m)
				for j := 0; j < m && d.Err() == nil; j++ {
					res.Targets = append(res.Targets, BrowsePathTarget{
						TargetID:           d.ReadExpandedNodeID(),
						RemainingPathIndex: d.ReadUInt32(),
					})
				}
			}
			r.Results = append(r.Results, res)
		}
	}
	d.SkipDiagnosticInfoArray()
}

func (r *TranslateBrowsePathsResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	e.WriteInt32(int32(len(r.Results)))
	for _, res := range r.Results {
		e.WriteStatusCode(res.StatusCode)
		e.WriteInt32(int32(len(res.Targets)))
		for _, t := range res.Targets {
			e.WriteExpandedNodeID(t.TargetID)
			e.WriteUInt32(t.RemainingPathIndex)
		}
	}
	e.WriteInt32(0)
}

// CallRequest invokes methods on objects.
type CallRequest struct {
	RequestHeader RequestHeader
	MethodsToCall []CallMethodRequest
}

func (r *CallRequest) ServiceID() ServiceID   { return ServiceCall }
func (r *CallRequest) Header() *RequestHeader { return &r.RequestHeader }

func (r *CallRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteInt32(int32(len(r.MethodsToCall)))
	for _, m := range r.MethodsToCall {
		e.WriteNodeID(m.ObjectID)
		e.WriteNodeID(m.MethodID)
		writeVariants(e, m.InputArguments)
	}
}

func (r *CallRequest) Decode(d *Decoder) {
	r.RequestHeader.Decode(d)
	if n := d.ReadArrayLength(); n > 0 {
		r.MethodsToCall = make([]CallMethodRequest, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			r.MethodsToCall = append(r.MethodsToCall, CallMethodRequest{
				ObjectID:       d.ReadNodeID(),
				MethodID:       d.ReadNodeID(),
				InputArguments: readVariants(d),
			})
		}
	}
}

// CallResponse carries one CallMethodResult per method called.
type CallResponse struct {
	ResponseHeader ResponseHeader
	Results        []CallMethodResult
}

func (r *CallResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *CallResponse) Decode(d *Decoder) {
	r.ResponseHeader.Decode(d)
	if r.ResponseHeader.ServiceResult.IsBad() {
		return
	}
	if n := d.ReadArrayLength(); n > 0 {
		r.Results = make([]CallMethodResult, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			res := CallMethodResult{
				StatusCode:           d.ReadStatusCode(),
				InputArgumentResults: d.ReadStatusCodeArray(),
			}
			d.SkipDiagnosticInfoArray()
			res.OutputArguments = readVariants(d)
			r.Results = append(r.Results, res)
		}
	}
	d.SkipDiagnosticInfoArray()
}

func (r *CallResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	e.WriteInt32(int32(len(r.Results)))
	for _, res := range r.Results {
		e.WriteStatusCode(res.StatusCode)
		writeStatusCodes(e, res.InputArgumentResults)
		e.WriteInt32(0)
		writeVariants(e, res.OutputArguments)
	}
	e.WriteInt32(0)
}

func writeVariants(e *Encoder, vs []Variant) {
	e.WriteInt32(int32(len(vs)))
	for _, v := range vs {
		e.WriteVariant(v)
	}
}

func readVariants(d *Decoder) []Variant {
	n := d.ReadArrayLength()
	if n <= 0 {
		return nil
	}
	out := make([]Variant, 0, n)
	for i := 0; i < n && d.Err() == nil; i++ {
		out = append(out, d.ReadVariant())
	}
	return out
}
